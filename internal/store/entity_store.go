package store

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/internal/smartcode"
	"github.com/bizcore/universal/pkg/metrics"
)

// StatusChangeRecorder receives entity status transitions so they can be
// recorded as audit transactions. Recording is best effort; a recorder
// failure never rolls back the status change itself.
type StatusChangeRecorder interface {
	RecordStatusChange(ctx context.Context, organizationID string, entity *model.Entity, previousStatus string) error
}

// EntityStore is CRUD for generic business objects.
type EntityStore struct {
	db       *gorm.DB
	log      *zap.Logger
	recorder StatusChangeRecorder
}

func NewEntityStore(db *gorm.DB, log *zap.Logger) *EntityStore {
	return &EntityStore{db: db, log: log}
}

// WithStatusRecorder wires an audit recorder for status transitions.
func (s *EntityStore) WithStatusRecorder(r StatusChangeRecorder) *EntityStore {
	s.recorder = r
	return s
}

// CreateEntityInput carries the caller-supplied attributes for a new entity.
// OrganizationID is optional; when set it must match the context.
type CreateEntityInput struct {
	OrganizationID string            `json:"organization_id,omitempty"`
	EntityType     string            `json:"entity_type"`
	EntityName     string            `json:"entity_name"`
	EntityCode     string            `json:"entity_code,omitempty"`
	Status         string            `json:"status,omitempty"`
	SmartCode      string            `json:"smart_code"`
	ParentEntityID *string           `json:"parent_entity_id,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
}

// Create validates and inserts a new entity. The smart code gate runs first;
// on any validation failure nothing is written.
func (s *EntityStore) Create(ctx context.Context, organizationID string, in CreateEntityInput) (*model.Entity, error) {
	orgID, err := stampOrganization(organizationID, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if in.EntityType == "" {
		return nil, apperr.Validation("entity_type", "entity_type is required")
	}
	if in.EntityName == "" {
		return nil, apperr.Validation("entity_name", "entity_name is required")
	}
	if err := smartcode.Validate("smart_code", in.SmartCode); err != nil {
		metrics.SmartCodeRejectionCounter.Inc()
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.EntityStatusActive
	}

	if in.EntityCode != "" {
		if err := s.checkCodeUnique(ctx, orgID, in.EntityType, in.EntityCode, ""); err != nil {
			return nil, err
		}
	}
	if in.ParentEntityID != nil {
		if _, err := s.Get(ctx, orgID, *in.ParentEntityID); err != nil {
			return nil, err
		}
	}

	entity := &model.Entity{
		OrganizationID: orgID,
		EntityType:     in.EntityType,
		EntityName:     in.EntityName,
		EntityCode:     in.EntityCode,
		Status:         status,
		SmartCode:      in.SmartCode,
		ParentEntityID: in.ParentEntityID,
		Metadata:       in.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, translateErr(err, "entity", in.EntityCode)
	}

	metrics.StoreOperationCounter.WithLabelValues("entity", "create").Inc()
	s.log.Info("entity created",
		zap.String("organization_id", orgID),
		zap.String("entity_id", entity.ID),
		zap.String("entity_type", entity.EntityType))
	return entity, nil
}

// Get returns one entity by id within the organization. Soft-deleted rows
// and rows belonging to other organizations are both not-found.
func (s *EntityStore) Get(ctx context.Context, organizationID, entityID string) (*model.Entity, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	var entity model.Entity
	err = q.Where("id = ?", entityID).
		Where("status <> ?", model.EntityStatusDeleted).
		First(&entity).Error
	if err != nil {
		return nil, translateErr(err, "entity", entityID)
	}
	return &entity, nil
}

// ListEntitiesFilter narrows List. Zero values mean "no filter".
type ListEntitiesFilter struct {
	EntityType     string
	Status         string
	NameContains   string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// List returns entities of one logical collection with pagination, plus the
// total count before paging.
func (s *EntityStore) List(ctx context.Context, organizationID string, f ListEntitiesFilter) ([]model.Entity, int64, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, 0, err
	}
	q = q.Model(&model.Entity{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	} else if !f.IncludeDeleted {
		q = q.Where("status <> ?", model.EntityStatusDeleted)
	}
	if f.NameContains != "" {
		q = q.Where("lower(entity_name) LIKE ?", "%"+strings.ToLower(f.NameContains)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateErr(err, "entity", "")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var entities []model.Entity
	err = q.Order("created_at ASC").Limit(limit).Offset(f.Offset).Find(&entities).Error
	if err != nil {
		return nil, 0, translateErr(err, "entity", "")
	}
	return entities, total, nil
}

// UpdateEntityInput is a partial patch; nil fields are left untouched.
type UpdateEntityInput struct {
	EntityName     *string            `json:"entity_name,omitempty"`
	EntityCode     *string            `json:"entity_code,omitempty"`
	Status         *string            `json:"status,omitempty"`
	SmartCode      *string            `json:"smart_code,omitempty"`
	ParentEntityID *string            `json:"parent_entity_id,omitempty"`
	Metadata       *datatypes.JSONMap `json:"metadata,omitempty"`
}

// Update applies a patch to an existing entity. The smart code gate runs on
// any new code before anything is written.
func (s *EntityStore) Update(ctx context.Context, organizationID, entityID string, patch UpdateEntityInput) (*model.Entity, error) {
	entity, err := s.Get(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	if patch.SmartCode != nil {
		if err := smartcode.Validate("smart_code", *patch.SmartCode); err != nil {
			metrics.SmartCodeRejectionCounter.Inc()
			return nil, err
		}
	}
	if patch.EntityName != nil && *patch.EntityName == "" {
		return nil, apperr.Validation("entity_name", "entity_name cannot be empty")
	}
	if patch.EntityCode != nil && *patch.EntityCode != "" && *patch.EntityCode != entity.EntityCode {
		if err := s.checkCodeUnique(ctx, organizationID, entity.EntityType, *patch.EntityCode, entity.ID); err != nil {
			return nil, err
		}
	}

	previousStatus := entity.Status
	if patch.EntityName != nil {
		entity.EntityName = *patch.EntityName
	}
	if patch.EntityCode != nil {
		entity.EntityCode = *patch.EntityCode
	}
	if patch.Status != nil {
		if *patch.Status == "" {
			return nil, apperr.Validation("status", "status cannot be empty")
		}
		entity.Status = *patch.Status
	}
	if patch.SmartCode != nil {
		entity.SmartCode = *patch.SmartCode
	}
	if patch.ParentEntityID != nil {
		if _, err := s.Get(ctx, organizationID, *patch.ParentEntityID); err != nil {
			return nil, err
		}
		entity.ParentEntityID = patch.ParentEntityID
	}
	if patch.Metadata != nil {
		entity.Metadata = *patch.Metadata
	}

	if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
		return nil, translateErr(err, "entity", entityID)
	}

	metrics.StoreOperationCounter.WithLabelValues("entity", "update").Inc()
	if entity.Status != previousStatus {
		s.recordStatusChange(ctx, organizationID, entity, previousStatus)
	}
	return entity, nil
}

// Delete soft-deletes an entity by flipping its status. The row stays in
// place and Recover reverses it; rows are never removed here.
func (s *EntityStore) Delete(ctx context.Context, organizationID, entityID string) error {
	entity, err := s.Get(ctx, organizationID, entityID)
	if err != nil {
		return err
	}
	previousStatus := entity.Status
	entity.Status = model.EntityStatusDeleted
	if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
		return translateErr(err, "entity", entityID)
	}
	metrics.StoreOperationCounter.WithLabelValues("entity", "delete").Inc()
	s.log.Info("entity soft-deleted",
		zap.String("organization_id", organizationID),
		zap.String("entity_id", entityID))
	s.recordStatusChange(ctx, organizationID, entity, previousStatus)
	return nil
}

// Recover reverses a soft delete. It re-checks tenant ownership: a deleted
// entity in another organization is still not-found.
func (s *EntityStore) Recover(ctx context.Context, organizationID, entityID string) (*model.Entity, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	var entity model.Entity
	err = q.Where("id = ?", entityID).
		Where("status = ?", model.EntityStatusDeleted).
		First(&entity).Error
	if err != nil {
		return nil, translateErr(err, "entity", entityID)
	}
	entity.Status = model.EntityStatusActive
	if err := s.db.WithContext(ctx).Save(&entity).Error; err != nil {
		return nil, translateErr(err, "entity", entityID)
	}
	metrics.StoreOperationCounter.WithLabelValues("entity", "recover").Inc()
	s.recordStatusChange(ctx, organizationID, &entity, model.EntityStatusDeleted)
	return &entity, nil
}

// checkCodeUnique enforces entity_code uniqueness within
// (organization_id, entity_type). Codes are not globally unique.
func (s *EntityStore) checkCodeUnique(ctx context.Context, organizationID, entityType, code, excludeID string) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	q = q.Model(&model.Entity{}).
		Where("entity_type = ?", entityType).
		Where("entity_code = ?", code).
		Where("status <> ?", model.EntityStatusDeleted)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return translateErr(err, "entity", code)
	}
	if count > 0 {
		return apperr.Conflict("entity_code " + code + " already exists for entity_type " + entityType)
	}
	return nil
}

func (s *EntityStore) recordStatusChange(ctx context.Context, organizationID string, entity *model.Entity, previousStatus string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordStatusChange(ctx, organizationID, entity, previousStatus); err != nil {
		s.log.Warn("status change audit record failed",
			zap.String("entity_id", entity.ID),
			zap.Error(err))
	}
}
