package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transaction statuses the core assigns; domains layer their own transitions
// on top (in_transit, posted, ...).
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusCancelled = "cancelled"
	TxStatusVoided    = "voided"
)

// TxTypeStatusChange is the transaction_type of audit events the entity
// store emits on status transitions.
const TxTypeStatusChange = "status_change"

// Transaction is a business event header: a sale, an appointment, a journal
// posting. Line detail hangs off TransactionLine.
type Transaction struct {
	ID                string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrganizationID    string            `json:"organization_id" gorm:"type:uuid;not null;index:idx_tx_org_type"`
	TransactionType   string            `json:"transaction_type" gorm:"type:varchar(100);not null;index:idx_tx_org_type"`
	TransactionCode   string            `json:"transaction_code" gorm:"type:varchar(100);index"`
	SmartCode         string            `json:"smart_code" gorm:"type:varchar(200);not null"`
	TransactionDate   time.Time         `json:"transaction_date" gorm:"not null"`
	SourceEntityID    *string           `json:"source_entity_id,omitempty" gorm:"type:uuid;index"`
	TargetEntityID    *string           `json:"target_entity_id,omitempty" gorm:"type:uuid;index"`
	TotalAmount       decimal.Decimal   `json:"total_amount" gorm:"type:decimal(20,6);not null;default:0"`
	TransactionStatus string            `json:"transaction_status" gorm:"type:varchar(50);not null;default:'pending'"`
	Metadata          datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string { return "universal_transactions" }

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TransactionLine is one itemized row of a transaction. Lines are owned by
// their header: organization_id is derived from it, and line_number is
// unique within it.
type TransactionLine struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey"`
	TransactionID  string            `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex:idx_tx_line_number"`
	OrganizationID string            `json:"organization_id" gorm:"type:uuid;not null;index"`
	LineNumber     int               `json:"line_number" gorm:"not null;uniqueIndex:idx_tx_line_number"`
	LineEntityID   *string           `json:"line_entity_id,omitempty" gorm:"type:uuid;index"`
	Quantity       decimal.Decimal   `json:"quantity" gorm:"type:decimal(20,6);not null;default:0"`
	UnitAmount     decimal.Decimal   `json:"unit_amount" gorm:"type:decimal(20,6);not null;default:0"`
	LineAmount     decimal.Decimal   `json:"line_amount" gorm:"type:decimal(20,6);not null;default:0"`
	SmartCode      string            `json:"smart_code" gorm:"type:varchar(200);not null"`
	LineData       datatypes.JSONMap `json:"line_data" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (TransactionLine) TableName() string { return "universal_transaction_lines" }

func (l *TransactionLine) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
