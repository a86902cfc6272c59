package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dynamic field value types. Exactly one value slot is populated per row and
// it must match FieldType; the engine rejects anything else.
const (
	FieldTypeText     = "text"
	FieldTypeNumber   = "number"
	FieldTypeBoolean  = "boolean"
	FieldTypeDate     = "date"
	FieldTypeDatetime = "datetime"
	FieldTypeJSON     = "json"
)

// DynamicField is one typed attribute attached to one entity. The unique
// index over (organization_id, entity_id, field_name) is what makes the
// upsert atomic.
type DynamicField struct {
	ID                string         `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID    string         `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:idx_dynamic_org_entity_field"`
	EntityID          string         `json:"entity_id" gorm:"type:uuid;not null;uniqueIndex:idx_dynamic_org_entity_field"`
	FieldName         string         `json:"field_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_dynamic_org_entity_field"`
	FieldType         string         `json:"field_type" gorm:"type:varchar(20);not null"`
	FieldValueText    *string        `json:"field_value_text,omitempty" gorm:"type:text"`
	FieldValueNumber  *float64       `json:"field_value_number,omitempty"`
	FieldValueBoolean *bool          `json:"field_value_boolean,omitempty"`
	FieldValueDate    *time.Time     `json:"field_value_date,omitempty"`
	FieldValueDatetime *time.Time    `json:"field_value_datetime,omitempty"`
	FieldValueJSON    datatypes.JSON `json:"field_value_json,omitempty" gorm:"type:jsonb"`
	SmartCode         string         `json:"smart_code" gorm:"type:varchar(200);not null"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (DynamicField) TableName() string { return "core_dynamic_data" }

func (f *DynamicField) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ValidFieldType reports whether t is one of the supported value types.
func ValidFieldType(t string) bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate, FieldTypeDatetime, FieldTypeJSON:
		return true
	}
	return false
}

// PopulatedSlots counts the non-null value slots on the row.
func (f *DynamicField) PopulatedSlots() int {
	n := 0
	if f.FieldValueText != nil {
		n++
	}
	if f.FieldValueNumber != nil {
		n++
	}
	if f.FieldValueBoolean != nil {
		n++
	}
	if f.FieldValueDate != nil {
		n++
	}
	if f.FieldValueDatetime != nil {
		n++
	}
	if len(f.FieldValueJSON) > 0 {
		n++
	}
	return n
}

// Value returns the populated slot for the row's declared type, or nil.
func (f *DynamicField) Value() interface{} {
	switch f.FieldType {
	case FieldTypeText:
		if f.FieldValueText != nil {
			return *f.FieldValueText
		}
	case FieldTypeNumber:
		if f.FieldValueNumber != nil {
			return *f.FieldValueNumber
		}
	case FieldTypeBoolean:
		if f.FieldValueBoolean != nil {
			return *f.FieldValueBoolean
		}
	case FieldTypeDate:
		if f.FieldValueDate != nil {
			return *f.FieldValueDate
		}
	case FieldTypeDatetime:
		if f.FieldValueDatetime != nil {
			return *f.FieldValueDatetime
		}
	case FieldTypeJSON:
		if len(f.FieldValueJSON) > 0 {
			return f.FieldValueJSON
		}
	}
	return nil
}
