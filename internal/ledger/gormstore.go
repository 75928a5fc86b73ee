package ledger

import (
	"context"
	"errors"

	"custody_wallet/internal/domain" // Importing domain models

	"github.com/shopspring/decimal" // Exact decimal amounts
	"gorm.io/gorm"                  // GORM ORM library
)

// GormStore is the database-backed Store. The conditional UPDATE statements
// in DebitBalance and MarkTerminal carry the compare-and-swap: the guard is
// evaluated by the database at write time, and zero affected rows means the
// precondition no longer held.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection as a Store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithinTx runs fn inside a database transaction; the Store handed to fn is
// bound to that transaction.
func (s *GormStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// GetUser fetches a user by id
func (s *GormStore) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreditBalance increments the user's balance
func (s *GormStore) CreditBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DebitBalance decrements the user's balance, guarded so it can never go
// negative
func (s *GormStore) DebitBalance(ctx context.Context, id uint, amount decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the user is gone or the guard failed; tell them apart
		if _, err := s.GetUser(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// CreateTransaction inserts a new transaction record
func (s *GormStore) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	return s.db.WithContext(ctx).Create(txn).Error
}

// GetTransaction fetches a transaction by id
func (s *GormStore) GetTransaction(ctx context.Context, id uint) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := s.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactionsByUser returns the user's transactions newest first with
// the total count
func (s *GormStore) ListTransactionsByUser(ctx context.Context, userID uint, offset, limit int) ([]domain.Transaction, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txns []domain.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// MarkTerminal moves a transaction out of pending. The status guard in the
// WHERE clause closes the double-approval window: the losing writer affects
// zero rows and gets ErrInvalidState.
func (s *GormStore) MarkTerminal(ctx context.Context, id uint, status domain.TxStatus, approvedAt *int64) error {
	updates := map[string]any{"status": status}
	if approvedAt != nil {
		updates["approved_at"] = *approvedAt
	}
	res := s.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetTransaction(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}
