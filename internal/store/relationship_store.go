package store

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/internal/smartcode"
	"github.com/bizcore/universal/pkg/metrics"
)

// Direction selects which endpoint of an edge to match.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing" // entity is from_entity_id
	DirectionIncoming Direction = "incoming" // entity is to_entity_id
)

// RelationshipStore is the directed typed edge graph between entities.
type RelationshipStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRelationshipStore(db *gorm.DB, log *zap.Logger) *RelationshipStore {
	return &RelationshipStore{db: db, log: log}
}

// CreateRelationshipInput carries one new edge. Duplicate edges of the same
// type between the same endpoints are allowed; uniqueness is a domain
// concern layered on top.
type CreateRelationshipInput struct {
	OrganizationID   string            `json:"organization_id,omitempty"`
	FromEntityID     string            `json:"from_entity_id"`
	ToEntityID       string            `json:"to_entity_id"`
	RelationshipType string            `json:"relationship_type"`
	SmartCode        string            `json:"smart_code"`
	RelationshipData datatypes.JSONMap `json:"relationship_data,omitempty"`
}

// Create validates both endpoints and inserts the edge.
func (s *RelationshipStore) Create(ctx context.Context, organizationID string, in CreateRelationshipInput) (*model.Relationship, error) {
	orgID, err := stampOrganization(organizationID, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if in.RelationshipType == "" {
		return nil, apperr.Validation("relationship_type", "relationship_type is required")
	}
	if in.FromEntityID == "" || in.ToEntityID == "" {
		return nil, apperr.Validation("from_entity_id", "both endpoints are required")
	}
	if err := smartcode.Validate("smart_code", in.SmartCode); err != nil {
		metrics.SmartCodeRejectionCounter.Inc()
		return nil, err
	}
	if err := s.resolveEndpoint(ctx, orgID, in.FromEntityID, in.RelationshipType, true); err != nil {
		return nil, err
	}
	if err := s.resolveEndpoint(ctx, orgID, in.ToEntityID, in.RelationshipType, false); err != nil {
		return nil, err
	}

	rel := &model.Relationship{
		OrganizationID:   orgID,
		FromEntityID:     in.FromEntityID,
		ToEntityID:       in.ToEntityID,
		RelationshipType: in.RelationshipType,
		IsActive:         true,
		RelationshipData: in.RelationshipData,
		SmartCode:        in.SmartCode,
	}
	if err := s.db.WithContext(ctx).Create(rel).Error; err != nil {
		return nil, translateErr(err, "relationship", in.RelationshipType)
	}
	metrics.StoreOperationCounter.WithLabelValues("relationship", "create").Inc()
	s.log.Info("relationship created",
		zap.String("organization_id", orgID),
		zap.String("relationship_type", in.RelationshipType),
		zap.String("from_entity_id", in.FromEntityID),
		zap.String("to_entity_id", in.ToEntityID))
	return rel, nil
}

// FindByEndpoint returns edges touching one entity in the given direction.
// Only active edges are returned unless includeInactive is set (audit and
// history views).
func (s *RelationshipStore) FindByEndpoint(ctx context.Context, organizationID, entityID string, dir Direction, relationshipType string, includeInactive bool) ([]model.Relationship, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	switch dir {
	case DirectionOutgoing:
		q = q.Where("from_entity_id = ?", entityID)
	case DirectionIncoming:
		q = q.Where("to_entity_id = ?", entityID)
	default:
		return nil, apperr.Validationf("direction", "direction must be %q or %q", DirectionOutgoing, DirectionIncoming)
	}
	if relationshipType != "" {
		q = q.Where("relationship_type = ?", relationshipType)
	}
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var rels []model.Relationship
	if err := q.Order("created_at ASC").Find(&rels).Error; err != nil {
		return nil, translateErr(err, "relationship", entityID)
	}
	return rels, nil
}

// Deactivate flips an edge inactive. Edges are never deleted, so history
// stays queryable with includeInactive.
func (s *RelationshipStore) Deactivate(ctx context.Context, organizationID, relationshipID string) error {
	return s.setActive(ctx, organizationID, relationshipID, false)
}

// Reactivate re-enables a previously deactivated edge.
func (s *RelationshipStore) Reactivate(ctx context.Context, organizationID, relationshipID string) error {
	return s.setActive(ctx, organizationID, relationshipID, true)
}

func (s *RelationshipStore) setActive(ctx context.Context, organizationID, relationshipID string, active bool) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	res := q.Model(&model.Relationship{}).
		Where("id = ?", relationshipID).
		Update("is_active", active)
	if res.Error != nil {
		return translateErr(res.Error, "relationship", relationshipID)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("relationship", relationshipID)
	}
	metrics.StoreOperationCounter.WithLabelValues("relationship", "set_active").Inc()
	return nil
}

// resolveEndpoint checks that an endpoint is consistent with the edge's
// scope. Normally the endpoint must be an entity of the same organization.
// Two named exceptions, both for membership edges:
//
//   - the to endpoint may be the organization record itself, and
//   - the from endpoint of a USER_MEMBER_OF_ORG edge may be a user entity
//     in the platform organization, since actor identities live there while
//     the membership edge lives in the organization it grants access to.
//
// The exception is restricted to that one relationship type; it is not a
// general cross-organization escape hatch.
func (s *RelationshipStore) resolveEndpoint(ctx context.Context, organizationID, endpointID, relationshipType string, isFrom bool) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	var count int64
	err = q.Model(&model.Entity{}).
		Where("id = ?", endpointID).
		Where("status <> ?", model.EntityStatusDeleted).
		Count(&count).Error
	if err != nil {
		return translateErr(err, "entity", endpointID)
	}
	if count > 0 {
		return nil
	}

	if !isFrom && endpointID == organizationID {
		return nil
	}

	if isFrom && relationshipType == model.RelTypeUserMemberOfOrg {
		err = s.db.WithContext(ctx).Model(&model.Entity{}).
			Where("organization_id = ?", model.PlatformOrganizationID).
			Where("id = ?", endpointID).
			Where("entity_type = ?", model.EntityTypeUser).
			Where("status <> ?", model.EntityStatusDeleted).
			Count(&count).Error
		if err != nil {
			return translateErr(err, "entity", endpointID)
		}
		if count > 0 {
			return nil
		}
	}

	return apperr.NotFound("entity", endpointID)
}
