package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Relationship types the core itself creates. The space is open; domains add
// their own (HAS_STATUS, PARENT_OF, ...).
const (
	RelTypeUserMemberOfOrg = "USER_MEMBER_OF_ORG"
	RelTypeHasRole         = "HAS_ROLE"
)

// Relationship is a directed typed edge between two entities. Edges are
// deactivated, never deleted, so history stays auditable.
type Relationship struct {
	ID               string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID   string            `json:"organization_id" gorm:"type:uuid;not null;index:idx_rel_org_from;index:idx_rel_org_to"`
	FromEntityID     string            `json:"from_entity_id" gorm:"type:uuid;not null;index:idx_rel_org_from"`
	ToEntityID       string            `json:"to_entity_id" gorm:"type:uuid;not null;index:idx_rel_org_to"`
	RelationshipType string            `json:"relationship_type" gorm:"type:varchar(100);not null;index"`
	IsActive         bool              `json:"is_active" gorm:"not null;default:true"`
	RelationshipData datatypes.JSONMap `json:"relationship_data" gorm:"type:jsonb"`
	SmartCode        string            `json:"smart_code" gorm:"type:varchar(200);not null"`
	CreatedAt        time.Time         `json:"created_at"`
}

func (Relationship) TableName() string { return "core_relationships" }

func (r *Relationship) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
