package store

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/model"
)

const membershipSmartCode = "PLATFORM.MEMBERSHIP.USER.ORG.V1"

// OrganizationStore provisions tenants. Unlike the four data stores it is
// not itself tenant-scoped: creating an organization is the act that brings
// a scope into existence, and the owner membership edge is written into the
// new organization's scope in the same database transaction.
type OrganizationStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewOrganizationStore(db *gorm.DB, log *zap.Logger) *OrganizationStore {
	return &OrganizationStore{db: db, log: log}
}

// CreateOrganizationInput names the new tenant and its owner (a user entity
// in the platform organization).
type CreateOrganizationInput struct {
	OrganizationName string            `json:"organization_name"`
	OrganizationCode string            `json:"organization_code"`
	Settings         datatypes.JSONMap `json:"settings,omitempty"`
	OwnerEntityID    string            `json:"owner_entity_id"`
}

// Create provisions an organization plus its owner membership edge.
func (s *OrganizationStore) Create(ctx context.Context, in CreateOrganizationInput) (*model.Organization, error) {
	if in.OrganizationName == "" {
		return nil, apperr.Validation("organization_name", "organization_name is required")
	}
	if in.OrganizationCode == "" {
		return nil, apperr.Validation("organization_code", "organization_code is required")
	}
	if in.OwnerEntityID == "" {
		return nil, apperr.Validation("owner_entity_id", "owner_entity_id is required")
	}

	var ownerCount int64
	err := s.db.WithContext(ctx).Model(&model.Entity{}).
		Where("organization_id = ?", model.PlatformOrganizationID).
		Where("id = ?", in.OwnerEntityID).
		Where("entity_type = ?", model.EntityTypeUser).
		Where("status <> ?", model.EntityStatusDeleted).
		Count(&ownerCount).Error
	if err != nil {
		return nil, translateErr(err, "entity", in.OwnerEntityID)
	}
	if ownerCount == 0 {
		return nil, apperr.NotFound("user entity", in.OwnerEntityID)
	}

	var dupCount int64
	err = s.db.WithContext(ctx).Model(&model.Organization{}).
		Where("organization_code = ?", in.OrganizationCode).
		Count(&dupCount).Error
	if err != nil {
		return nil, translateErr(err, "organization", in.OrganizationCode)
	}
	if dupCount > 0 {
		return nil, apperr.Conflict("organization_code " + in.OrganizationCode + " already exists")
	}

	// First membership becomes the user's default organization.
	var memberships int64
	err = s.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("from_entity_id = ?", in.OwnerEntityID).
		Where("relationship_type = ?", model.RelTypeUserMemberOfOrg).
		Where("is_active = ?", true).
		Count(&memberships).Error
	if err != nil {
		return nil, translateErr(err, "relationship", in.OwnerEntityID)
	}

	org := &model.Organization{
		OrganizationName: in.OrganizationName,
		OrganizationCode: in.OrganizationCode,
		Status:           "active",
		Settings:         in.Settings,
	}
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(org).Error; err != nil {
			return translateErr(err, "organization", in.OrganizationCode)
		}
		edge := &model.Relationship{
			OrganizationID:   org.ID,
			FromEntityID:     in.OwnerEntityID,
			ToEntityID:       org.ID,
			RelationshipType: model.RelTypeUserMemberOfOrg,
			IsActive:         true,
			SmartCode:        membershipSmartCode,
			RelationshipData: datatypes.JSONMap{
				"role":       authz.RoleOwner,
				"is_default": memberships == 0,
			},
		}
		if err := dbtx.Create(edge).Error; err != nil {
			return translateErr(err, "relationship", model.RelTypeUserMemberOfOrg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization provisioned",
		zap.String("organization_id", org.ID),
		zap.String("organization_code", org.OrganizationCode),
		zap.String("owner_entity_id", in.OwnerEntityID))
	return org, nil
}

// Get returns one organization by id.
func (s *OrganizationStore) Get(ctx context.Context, organizationID string) (*model.Organization, error) {
	if organizationID == "" {
		return nil, apperr.TenantIsolation("organization id is required")
	}
	var org model.Organization
	err := s.db.WithContext(ctx).Where("id = ?", organizationID).First(&org).Error
	if err != nil {
		return nil, translateErr(err, "organization", organizationID)
	}
	return &org, nil
}

// AddMember grants an existing user membership in an organization with the
// given role. Used by admin flows; the resolver picks the edge up on the
// next resolution.
func (s *OrganizationStore) AddMember(ctx context.Context, organizationID, userEntityID, role string) (*model.Relationship, error) {
	if organizationID == "" {
		return nil, apperr.TenantIsolation("organization id is required")
	}
	if role == "" {
		role = authz.RoleMember
	}
	var ownerCount int64
	err := s.db.WithContext(ctx).Model(&model.Entity{}).
		Where("organization_id = ?", model.PlatformOrganizationID).
		Where("id = ?", userEntityID).
		Where("entity_type = ?", model.EntityTypeUser).
		Where("status <> ?", model.EntityStatusDeleted).
		Count(&ownerCount).Error
	if err != nil {
		return nil, translateErr(err, "entity", userEntityID)
	}
	if ownerCount == 0 {
		return nil, apperr.NotFound("user entity", userEntityID)
	}
	if _, err := s.Get(ctx, organizationID); err != nil {
		return nil, err
	}

	edge := &model.Relationship{
		OrganizationID:   organizationID,
		FromEntityID:     userEntityID,
		ToEntityID:       organizationID,
		RelationshipType: model.RelTypeUserMemberOfOrg,
		IsActive:         true,
		SmartCode:        membershipSmartCode,
		RelationshipData: datatypes.JSONMap{"role": role},
	}
	if err := s.db.WithContext(ctx).Create(edge).Error; err != nil {
		return nil, translateErr(err, "relationship", model.RelTypeUserMemberOfOrg)
	}
	s.log.Info("membership granted",
		zap.String("organization_id", organizationID),
		zap.String("user_entity_id", userEntityID),
		zap.String("role", role))
	return edge, nil
}
