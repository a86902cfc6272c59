package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bizcore/universal/internal/apperr"
	"github.com/bizcore/universal/internal/model"
	"github.com/bizcore/universal/internal/smartcode"
	"github.com/bizcore/universal/pkg/metrics"
)

// smart code for entity status-change audit events
const statusChangeSmartCode = "PLATFORM.AUDIT.ENTITY.STATUS.V1"

// TransactionStore is the ledger of business events: headers plus itemized
// lines. Transactions are never deleted; the audit trail is preserved
// through status transitions (cancelled, voided).
type TransactionStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTransactionStore(db *gorm.DB, log *zap.Logger) *TransactionStore {
	return &TransactionStore{db: db, log: log}
}

// TransactionInput carries a new event header.
type TransactionInput struct {
	OrganizationID    string            `json:"organization_id,omitempty"`
	TransactionType   string            `json:"transaction_type"`
	TransactionCode   string            `json:"transaction_code,omitempty"`
	SmartCode         string            `json:"smart_code"`
	TransactionDate   time.Time         `json:"transaction_date"`
	SourceEntityID    *string           `json:"source_entity_id,omitempty"`
	TargetEntityID    *string           `json:"target_entity_id,omitempty"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	TransactionStatus string            `json:"transaction_status,omitempty"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
}

// LineInput carries one line. LineNumber 0 means "assign the next number".
type LineInput struct {
	LineNumber   int               `json:"line_number,omitempty"`
	LineEntityID *string           `json:"line_entity_id,omitempty"`
	Quantity     decimal.Decimal   `json:"quantity"`
	UnitAmount   decimal.Decimal   `json:"unit_amount"`
	LineAmount   decimal.Decimal   `json:"line_amount"`
	SmartCode    string            `json:"smart_code"`
	LineData     datatypes.JSONMap `json:"line_data,omitempty"`
}

// Create inserts a new transaction header. Lines are appended afterwards.
func (s *TransactionStore) Create(ctx context.Context, organizationID string, in TransactionInput) (*model.Transaction, error) {
	orgID, err := stampOrganization(organizationID, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if in.TransactionType == "" {
		return nil, apperr.Validation("transaction_type", "transaction_type is required")
	}
	if err := smartcode.Validate("smart_code", in.SmartCode); err != nil {
		metrics.SmartCodeRejectionCounter.Inc()
		return nil, err
	}
	status := in.TransactionStatus
	if status == "" {
		status = model.TxStatusPending
	}
	txDate := in.TransactionDate
	if txDate.IsZero() {
		txDate = time.Now().UTC()
	}
	if in.SourceEntityID != nil {
		if err := s.checkEntity(ctx, orgID, *in.SourceEntityID); err != nil {
			return nil, err
		}
	}
	if in.TargetEntityID != nil {
		if err := s.checkEntity(ctx, orgID, *in.TargetEntityID); err != nil {
			return nil, err
		}
	}

	tx := &model.Transaction{
		OrganizationID:    orgID,
		TransactionType:   in.TransactionType,
		TransactionCode:   in.TransactionCode,
		SmartCode:         in.SmartCode,
		TransactionDate:   txDate,
		SourceEntityID:    in.SourceEntityID,
		TargetEntityID:    in.TargetEntityID,
		TotalAmount:       in.TotalAmount,
		TransactionStatus: status,
		Metadata:          in.Metadata,
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, translateErr(err, "transaction", in.TransactionCode)
	}
	metrics.StoreOperationCounter.WithLabelValues("transaction", "create").Inc()
	s.log.Info("transaction created",
		zap.String("organization_id", orgID),
		zap.String("transaction_id", tx.ID),
		zap.String("transaction_type", tx.TransactionType))
	return tx, nil
}

// AppendLines adds lines to an existing transaction. Line numbers are
// assigned sequentially from the current maximum when not supplied; an
// explicit number colliding with an existing or in-batch number rejects the
// whole append. The lines inherit the header's organization_id; a caller
// cannot supply one.
func (s *TransactionStore) AppendLines(ctx context.Context, organizationID, transactionID string, lines []LineInput) ([]model.TransactionLine, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("lines", "at least one line is required")
	}
	header, err := s.get(ctx, organizationID, transactionID)
	if err != nil {
		return nil, err
	}

	var created []model.TransactionLine
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		var existing []int
		if err := dbtx.Model(&model.TransactionLine{}).
			Where("transaction_id = ?", transactionID).
			Pluck("line_number", &existing).Error; err != nil {
			return translateErr(err, "transaction line", transactionID)
		}
		used := make(map[int]bool, len(existing))
		next := 1
		for _, n := range existing {
			used[n] = true
			if n >= next {
				next = n + 1
			}
		}

		for i, in := range lines {
			if err := smartcode.Validate(fmt.Sprintf("lines[%d].smart_code", i), in.SmartCode); err != nil {
				metrics.SmartCodeRejectionCounter.Inc()
				return err
			}
			num := in.LineNumber
			if num == 0 {
				num = next
				next++
			} else {
				if num < 1 {
					return apperr.Validationf(fmt.Sprintf("lines[%d].line_number", i), "line_number must be >= 1, got %d", num)
				}
				if used[num] {
					return apperr.Validationf(fmt.Sprintf("lines[%d].line_number", i), "line_number %d already exists on transaction %s", num, transactionID)
				}
				if num >= next {
					next = num + 1
				}
			}
			used[num] = true

			line := model.TransactionLine{
				TransactionID:  transactionID,
				OrganizationID: header.OrganizationID, // derived, never caller-supplied
				LineNumber:     num,
				LineEntityID:   in.LineEntityID,
				Quantity:       in.Quantity,
				UnitAmount:     in.UnitAmount,
				LineAmount:     in.LineAmount,
				SmartCode:      in.SmartCode,
				LineData:       in.LineData,
			}
			if err := dbtx.Create(&line).Error; err != nil {
				return translateErr(err, "transaction line", fmt.Sprintf("%d", num))
			}
			created = append(created, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.StoreOperationCounter.WithLabelValues("transaction", "append_lines").Inc()
	return created, nil
}

// UpdateStatus is a pure state transition. It never recomputes total_amount
// from lines; reconciliation is a domain job, not the ledger's.
func (s *TransactionStore) UpdateStatus(ctx context.Context, organizationID, transactionID, newStatus string, metadataPatch datatypes.JSONMap) (*model.Transaction, error) {
	if newStatus == "" {
		return nil, apperr.Validation("transaction_status", "transaction_status is required")
	}
	tx, err := s.get(ctx, organizationID, transactionID)
	if err != nil {
		return nil, err
	}
	tx.TransactionStatus = newStatus
	if len(metadataPatch) > 0 {
		if tx.Metadata == nil {
			tx.Metadata = datatypes.JSONMap{}
		}
		for k, v := range metadataPatch {
			tx.Metadata[k] = v
		}
	}
	if err := s.db.WithContext(ctx).Save(tx).Error; err != nil {
		return nil, translateErr(err, "transaction", transactionID)
	}
	metrics.StoreOperationCounter.WithLabelValues("transaction", "update_status").Inc()
	s.log.Info("transaction status updated",
		zap.String("organization_id", organizationID),
		zap.String("transaction_id", transactionID),
		zap.String("transaction_status", newStatus))
	return tx, nil
}

// GetWithLines returns the header and its lines ordered by line_number.
func (s *TransactionStore) GetWithLines(ctx context.Context, organizationID, transactionID string) (*model.Transaction, []model.TransactionLine, error) {
	tx, err := s.get(ctx, organizationID, transactionID)
	if err != nil {
		return nil, nil, err
	}
	var lines []model.TransactionLine
	err = s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("line_number ASC").
		Find(&lines).Error
	if err != nil {
		return nil, nil, translateErr(err, "transaction line", transactionID)
	}
	return tx, lines, nil
}

// RecordStatusChange implements StatusChangeRecorder: entity status
// transitions become audit transactions on the ledger. The row is written
// directly rather than through Create, since the subject entity may already
// be soft-deleted when the event is for the deletion itself.
func (s *TransactionStore) RecordStatusChange(ctx context.Context, organizationID string, entity *model.Entity, previousStatus string) error {
	orgID, err := stampOrganization(organizationID, entity.OrganizationID)
	if err != nil {
		return err
	}
	tx := &model.Transaction{
		OrganizationID:    orgID,
		TransactionType:   model.TxTypeStatusChange,
		SmartCode:         statusChangeSmartCode,
		TransactionDate:   time.Now().UTC(),
		SourceEntityID:    &entity.ID,
		TotalAmount:       decimal.Zero,
		TransactionStatus: model.TxStatusCompleted,
		Metadata: datatypes.JSONMap{
			"entity_type":     entity.EntityType,
			"previous_status": previousStatus,
			"new_status":      entity.Status,
		},
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return translateErr(err, "transaction", model.TxTypeStatusChange)
	}
	return nil
}

func (s *TransactionStore) get(ctx context.Context, organizationID, transactionID string) (*model.Transaction, error) {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return nil, err
	}
	var tx model.Transaction
	if err := q.Where("id = ?", transactionID).First(&tx).Error; err != nil {
		return nil, translateErr(err, "transaction", transactionID)
	}
	return &tx, nil
}

func (s *TransactionStore) checkEntity(ctx context.Context, organizationID, entityID string) error {
	q, err := scoped(ctx, s.db, organizationID)
	if err != nil {
		return err
	}
	var count int64
	err = q.Model(&model.Entity{}).
		Where("id = ?", entityID).
		Where("status <> ?", model.EntityStatusDeleted).
		Count(&count).Error
	if err != nil {
		return translateErr(err, "entity", entityID)
	}
	if count == 0 {
		return apperr.NotFound("entity", entityID)
	}
	return nil
}
