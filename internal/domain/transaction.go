package domain

import "github.com/shopspring/decimal"

// TxKind is the kind of a balance transaction
type TxKind string

// Transaction kinds
const (
	TxDeposit  TxKind = "deposit"  // Credits the balance once approved
	TxBuy      TxKind = "buy"      // Debits the balance once approved
	TxWithdraw TxKind = "withdraw" // Debits (escrows) the balance at creation
)

// TxStatus is the lifecycle state of a transaction
type TxStatus string

// Transaction lifecycle states; complete and failed are terminal
const (
	TxPending  TxStatus = "pending"  // Created, waiting for an admin decision
	TxComplete TxStatus = "complete" // Approved by an admin
	TxFailed   TxStatus = "failed"   // Denied by an admin
)

// Terminal reports whether s permits no further transitions
func (s TxStatus) Terminal() bool {
	return s == TxComplete || s == TxFailed
}

// Transaction Model
type Transaction struct {
	ID         uint            `gorm:"primaryKey" json:"id"`                      // Primary key
	UserID     uint            `gorm:"index;not null" json:"user_id"`             // Foreign key to the owning User
	Kind       TxKind          `gorm:"type:varchar(16);not null" json:"kind"`     // deposit, buy or withdraw
	Amount     decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"` // Amount of the transaction, immutable
	Address    string          `gorm:"size:128" json:"address,omitempty"`         // Destination address, withdrawals only
	Status     TxStatus        `gorm:"type:varchar(16);not null" json:"status"`   // pending, complete or failed
	CreatedAt  int64           `gorm:"autoCreateTime:milli" json:"created_at"`    // Timestamp of creation in milliseconds
	ApprovedAt *int64          `json:"approved_at,omitempty"`                     // Timestamp of approval in milliseconds, set on completion only
}
