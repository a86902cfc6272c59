package store

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/internal/smartcode"
	"github.com/bizcore/universal/pkg/metrics"
)

// DynamicDataStore is the typed key/value attribute engine. One row per
// (organization, entity, field_name); writes are upserts, never blind
// inserts.
type DynamicDataStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDynamicDataStore(db *gorm.DB, log *zap.Logger) *DynamicDataStore {
	return &DynamicDataStore{db: db, log: log}
}

// FieldInput is one attribute write. Value must match FieldType; no slot
// coercion happens on mismatch.
type FieldInput struct {
	FieldName string      `json:"field_name"`
	FieldType string      `json:"field_type"`
	Value     interface{} `json:"value"`
	SmartCode string      `json:"smart_code"`
}

// FieldResult is the per-item outcome of a batch upsert.
type FieldResult struct {
	FieldName string              `json:"field_name"`
	Field     *model.DynamicField `json:"field,omitempty"`
	Err       error               `json:"-"`
}

// upsertConflict is the ON CONFLICT clause shared by single and batch
// upserts: last write wins on the unique (org, entity, field_name) index,
// so two concurrent writers cannot produce duplicate rows.
var upsertConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "organization_id"}, {Name: "entity_id"}, {Name: "field_name"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"field_type",
		"field_value_text",
		"field_value_number",
		"field_value_boolean",
		"field_value_date",
		"field_value_datetime",
		"field_value_json",
		"smart_code",
		"updated_at",
	}),
}

// UpsertField writes one attribute value, updating in place when the field
// already exists. The owning entity must exist within the organization.
func (s *DynamicDataStore) UpsertField(ctx context.Context, organizationID, entityID string, in FieldInput) (*model.DynamicField, error) {
	if err := s.checkEntity(ctx, organizationID, entityID); err != nil {
		return nil, err
	}
	row, err := s.buildRow(organizationID, entityID, in)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Clauses(upsertConflict).Create(row).Error; err != nil {
		return nil, translateErr(err, "dynamic field", in.FieldName)
	}
	metrics.StoreOperationCounter.WithLabelValues("dynamic_data", "upsert").Inc()
	return s.getField(ctx, organizationID, entityID, in.FieldName)
}

// GetFields returns all attributes of one entity, ordered by field name.
func (s *DynamicDataStore) GetFields(ctx context.Context, organizationID, entityID string) ([]model.DynamicField, error) {
	if err := s.checkEntity(ctx, organizationID, entityID); err != nil {
		return nil, err
	}
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	var fields []model.DynamicField
	err = q.Where("entity_id = ?", entityID).Order("field_name ASC").Find(&fields).Error
	if err != nil {
		return nil, translateErr(err, "dynamic field", entityID)
	}
	return fields, nil
}

// BatchUpsert writes several attributes best effort: each input gets its own
// result and one bad field does not abort the rest. The owning entity is
// checked once up front.
func (s *DynamicDataStore) BatchUpsert(ctx context.Context, organizationID, entityID string, ins []FieldInput) ([]FieldResult, error) {
	if err := s.checkEntity(ctx, organizationID, entityID); err != nil {
		return nil, err
	}
	results := make([]FieldResult, 0, len(ins))
	for _, in := range ins {
		res := FieldResult{FieldName: in.FieldName}
		row, err := s.buildRow(organizationID, entityID, in)
		if err == nil {
			err = s.db.WithContext(ctx).Clauses(upsertConflict).Create(row).Error
			if err != nil {
				err = translateErr(err, "dynamic field", in.FieldName)
			}
		}
		if err != nil {
			res.Err = err
			s.log.Warn("batch field upsert failed",
				zap.String("entity_id", entityID),
				zap.String("field_name", in.FieldName),
				zap.Error(err))
		} else {
			res.Field, res.Err = s.getField(ctx, organizationID, entityID, in.FieldName)
		}
		results = append(results, res)
	}
	metrics.StoreOperationCounter.WithLabelValues("dynamic_data", "batch_upsert").Inc()
	return results, nil
}

// DeleteField removes one attribute row. Fields are deleted independently of
// the owning entity.
func (s *DynamicDataStore) DeleteField(ctx context.Context, organizationID, entityID, fieldName string) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	res := q.Where("entity_id = ?", entityID).
		Where("field_name = ?", fieldName).
		Delete(&model.DynamicField{})
	if res.Error != nil {
		return translateErr(res.Error, "dynamic field", fieldName)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("dynamic field", fieldName)
	}
	metrics.StoreOperationCounter.WithLabelValues("dynamic_data", "delete").Inc()
	return nil
}

func (s *DynamicDataStore) getField(ctx context.Context, organizationID, entityID, fieldName string) (*model.DynamicField, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	var field model.DynamicField
	err = q.Where("entity_id = ?", entityID).Where("field_name = ?", fieldName).First(&field).Error
	if err != nil {
		return nil, translateErr(err, "dynamic field", fieldName)
	}
	return &field, nil
}

func (s *DynamicDataStore) checkEntity(ctx context.Context, organizationID, entityID string) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	var count int64
	err = q.Model(&model.Entity{}).
		Where("id = ?", entityID).
		Where("status <> ?", model.EntityStatusDeleted).
		Count(&count).Error
	if err != nil {
		return translateErr(err, "entity", entityID)
	}
	if count == 0 {
		return apperr.NotFound("entity", entityID)
	}
	return nil
}

// buildRow validates the input and populates exactly the value slot matching
// field_type. A value of the wrong Go type is a validation error, not a
// pick-first-non-null.
func (s *DynamicDataStore) buildRow(organizationID, entityID string, in FieldInput) (*model.DynamicField, error) {
	if in.FieldName == "" {
		return nil, apperr.Validation("field_name", "field_name is required")
	}
	if !model.ValidFieldType(in.FieldType) {
		return nil, apperr.Validationf("field_type", "unsupported field_type %q", in.FieldType)
	}
	if err := smartcode.Validate("smart_code", in.SmartCode); err != nil {
		metrics.SmartCodeRejectionCounter.Inc()
		return nil, err
	}
	if in.Value == nil {
		return nil, apperr.Validation("value", "value is required")
	}

	row := &model.DynamicField{
		OrganizationID: organizationID,
		EntityID:       entityID,
		FieldName:      in.FieldName,
		FieldType:      in.FieldType,
		SmartCode:      in.SmartCode,
	}

	switch in.FieldType {
	case model.FieldTypeText:
		v, ok := in.Value.(string)
		if !ok {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueText = &v
	case model.FieldTypeNumber:
		v, ok := toFloat(in.Value)
		if !ok {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueNumber = &v
	case model.FieldTypeBoolean:
		v, ok := in.Value.(bool)
		if !ok {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueBoolean = &v
	case model.FieldTypeDate:
		v, ok := toTime(in.Value, "2006-01-02")
		if !ok {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueDate = &v
	case model.FieldTypeDatetime:
		v, ok := toTime(in.Value, time.RFC3339)
		if !ok {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueDatetime = &v
	case model.FieldTypeJSON:
		raw, err := json.Marshal(in.Value)
		if err != nil {
			return nil, typeMismatch(in.FieldName, in.FieldType, in.Value)
		}
		row.FieldValueJSON = datatypes.JSON(raw)
	}

	return row, nil
}

func typeMismatch(fieldName, fieldType string, value interface{}) error {
	return apperr.Validationf("value", "field %q: value of type %T does not match field_type %q", fieldName, value, fieldType)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v interface{}, layout string) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(layout, t)
		if err != nil {
			// datetime inputs may arrive in either layout over JSON
			if parsed, err = time.Parse(time.RFC3339, t); err != nil {
				return time.Time{}, false
			}
		}
		return parsed, true
	}
	return time.Time{}, false
}
