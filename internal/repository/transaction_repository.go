package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nuzul-stays/service-booking/internal/domain"
	"github.com/nuzul-stays/service-booking/internal/domain/ledger"
)

// TransactionModel is the GORM model for the payment_transactions table.
type TransactionModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Type        string    `gorm:"not null;size:20"`
	Status      string    `gorm:"not null;size:20"`
	AmountCents int64     `gorm:"not null"`
	Currency    string    `gorm:"not null;size:3"`
	Provider    string    `gorm:"not null;size:20;uniqueIndex:idx_provider_gateway_ref,where:gateway_ref <> ''"`
	GatewayRef  string    `gorm:"size:100;uniqueIndex:idx_provider_gateway_ref,where:gateway_ref <> ''"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TransactionModel) TableName() string {
	return "payment_transactions"
}

// GormTransactionRepository is the GORM-based implementation of
// ledger.Repository.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository.
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Append persists a new ledger entry. Entries are never updated.
func (r *GormTransactionRepository) Append(ctx context.Context, tx *ledger.Transaction) error {
	model := &TransactionModel{
		ID:          tx.ID,
		BookingID:   tx.BookingID,
		Type:        string(tx.Type),
		Status:      string(tx.Status),
		AmountCents: tx.AmountCents,
		Currency:    tx.Currency,
		Provider:    tx.Provider,
		GatewayRef:  tx.GatewayRef,
		CreatedAt:   tx.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("ledger entry already recorded for this gateway reference")
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// FindByGatewayRef retrieves the ledger entry for a provider transaction.
func (r *GormTransactionRepository) FindByGatewayRef(ctx context.Context, provider, ref string) (*ledger.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND gateway_ref = ?", provider, ref).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Transaction", ref)
		}
		return nil, fmt.Errorf("failed to find transaction by gateway ref: %w", err)
	}
	return toDomainTransaction(&model), nil
}

// ListByBooking retrieves a booking's ledger entries oldest first.
func (r *GormTransactionRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*ledger.Transaction, error) {
	var models []TransactionModel
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]*ledger.Transaction, len(models))
	for i, m := range models {
		txs[i] = toDomainTransaction(&m)
	}
	return txs, nil
}

func toDomainTransaction(m *TransactionModel) *ledger.Transaction {
	return &ledger.Transaction{
		ID:          m.ID,
		BookingID:   m.BookingID,
		Type:        ledger.TransactionType(m.Type),
		Status:      ledger.TransactionStatus(m.Status),
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Provider:    m.Provider,
		GatewayRef:  m.GatewayRef,
		CreatedAt:   m.CreatedAt,
	}
}
