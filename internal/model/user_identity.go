package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserIdentity holds login credentials for an actor. The actor's profile is
// a regular entity (entity_type "user") in the platform organization;
// EntityID links the two. Membership in real organizations is expressed as
// USER_MEMBER_OF_ORG relationship edges, not columns here.
type UserIdentity struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	EntityID     string    `json:"entity_id" gorm:"type:uuid;not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"type:varchar(200);not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UserIdentity) TableName() string { return "core_user_identities" }

func (u *UserIdentity) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
