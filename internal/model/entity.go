package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entity statuses. entity_type and status are open string spaces; these are
// only the values the core itself assigns.
const (
	EntityStatusActive   = "active"
	EntityStatusInactive = "inactive"
	EntityStatusDeleted  = "deleted"
)

// EntityTypeUser is the entity_type of actor identities stored in the
// platform organization.
const EntityTypeUser = "user"

// Entity is any business "noun": customer, product, gl_account, employee.
// Domain meaning lives in entity_type and smart_code, not in the schema.
type Entity struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID string            `json:"organization_id" gorm:"type:uuid;not null;index:idx_entities_org_type"`
	EntityType     string            `json:"entity_type" gorm:"type:varchar(100);not null;index:idx_entities_org_type"`
	EntityName     string            `json:"entity_name" gorm:"type:varchar(200);not null"`
	EntityCode     string            `json:"entity_code" gorm:"type:varchar(100);index"`
	Status         string            `json:"status" gorm:"type:varchar(50);not null;default:'active'"`
	SmartCode      string            `json:"smart_code" gorm:"type:varchar(200);not null"`
	ParentEntityID *string           `json:"parent_entity_id,omitempty" gorm:"type:uuid;index"`
	Metadata       datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (Entity) TableName() string { return "core_entities" }

func (e *Entity) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
