package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlatformOrganizationID is the distinguished organization that holds
// cross-tenant identity records (user entities). Membership edges pointing
// at a real organization live in that organization's scope, not here.
const PlatformOrganizationID = "00000000-0000-0000-0000-000000000000"

// Organization is the tenant boundary. Every row in every other table
// carries one of these ids.
type Organization struct {
	ID               string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationName string            `json:"organization_name" gorm:"type:varchar(200);not null"`
	OrganizationCode string            `json:"organization_code" gorm:"type:varchar(50);uniqueIndex"`
	Status           string            `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	Settings         datatypes.JSONMap `json:"settings" gorm:"type:jsonb"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (Organization) TableName() string { return "core_organizations" }

func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
