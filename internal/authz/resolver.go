package authz

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
)

// ErrNoMembership is the resolver's terminal Denied state: the actor has no
// active membership edge in any organization.
var ErrNoMembership = &apperr.Error{Kind: apperr.KindTenantIsolation, Message: "no active organization membership"}

// Membership is one resolved organization the actor may act within.
type Membership struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	OrganizationCode string    `json:"organization_code"`
	Role             string    `json:"role"`
	Permissions      []string  `json:"permissions"`
	IsDefault        bool      `json:"is_default"`
	JoinedAt         time.Time `json:"joined_at"`
}

// Profile is the full resolution result for one actor.
type Profile struct {
	UserEntityID          string       `json:"user_entity_id"`
	DefaultOrganizationID string       `json:"default_organization_id"`
	Organizations         []Membership `json:"organizations"`
}

// Resolver turns an actor identity into its organization memberships.
type Resolver struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewResolver(db *gorm.DB, log *zap.Logger) *Resolver {
	return &Resolver{db: db, log: log}
}

// Resolve looks up the actor's active membership edges and returns the
// organizations it may act within. One call, one consistent view: callers
// never orchestrate the underlying lookups themselves.
//
// Membership edges live in the scope of the organization they grant access
// to, while the user entity lives in the platform organization. This query
// is therefore the one sanctioned cross-organization read in the module; it
// is constrained to the USER_MEMBER_OF_ORG relationship type and must not
// be generalized.
func (r *Resolver) Resolve(ctx context.Context, userEntityID string) (*Profile, error) {
	if userEntityID == "" {
		return nil, apperr.Validation("user_entity_id", "user entity id is required")
	}

	var rows []struct {
		model.Relationship
		OrganizationName string
		OrganizationCode string
		OrgStatus        string
	}
	err := r.db.WithContext(ctx).
		Table("core_relationships").
		Select("core_relationships.*, core_organizations.organization_name, core_organizations.organization_code, core_organizations.status AS org_status").
		Joins("JOIN core_organizations ON core_organizations.id = core_relationships.organization_id").
		Where("core_relationships.from_entity_id = ?", userEntityID).
		Where("core_relationships.relationship_type = ?", model.RelTypeUserMemberOfOrg).
		Where("core_relationships.is_active = ?", true).
		Order("core_relationships.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.BackingStore(err)
	}

	profile := &Profile{UserEntityID: userEntityID}
	for _, row := range rows {
		if row.OrgStatus != "active" {
			continue
		}
		role := RoleMember
		isDefault := false
		if row.RelationshipData != nil {
			if v, ok := row.RelationshipData["role"].(string); ok && v != "" {
				role = v
			}
			if v, ok := row.RelationshipData["is_default"].(bool); ok {
				isDefault = v
			}
		}
		profile.Organizations = append(profile.Organizations, Membership{
			OrganizationID:   row.OrganizationID,
			OrganizationName: row.OrganizationName,
			OrganizationCode: row.OrganizationCode,
			Role:             role,
			Permissions:      PermissionsForRole(role),
			IsDefault:        isDefault,
			JoinedAt:         row.CreatedAt,
		})
	}

	if len(profile.Organizations) == 0 {
		r.log.Warn("membership resolution denied", zap.String("user_entity_id", userEntityID))
		return nil, ErrNoMembership
	}

	// Default organization: explicit preference wins, else first joined.
	sort.SliceStable(profile.Organizations, func(i, j int) bool {
		return profile.Organizations[i].JoinedAt.Before(profile.Organizations[j].JoinedAt)
	})
	profile.DefaultOrganizationID = profile.Organizations[0].OrganizationID
	for _, m := range profile.Organizations {
		if m.IsDefault {
			profile.DefaultOrganizationID = m.OrganizationID
			break
		}
	}

	return profile, nil
}

// ContextFor builds a request context for one of the profile's
// organizations. Selecting an organization the actor is not a member of is
// a tenant isolation failure, not a not-found.
func (r *Resolver) ContextFor(profile *Profile, organizationID string) (*Context, error) {
	if organizationID == "" {
		organizationID = profile.DefaultOrganizationID
	}
	for _, m := range profile.Organizations {
		if m.OrganizationID == organizationID {
			return &Context{
				UserEntityID:     profile.UserEntityID,
				OrganizationID:   m.OrganizationID,
				OrganizationName: m.OrganizationName,
				Role:             m.Role,
				Permissions:      m.Permissions,
			}, nil
		}
	}
	return nil, apperr.TenantIsolation("actor is not a member of the requested organization")
}
