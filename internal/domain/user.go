package domain

import "github.com/shopspring/decimal"

// UserStatus is the admin-approval state of an account
type UserStatus string

// User approval states
const (
	UserPending  UserStatus = "pending"  // Registered, waiting for admin approval
	UserApproved UserStatus = "approved" // Approved, may submit transactions
)

// User Model
type User struct {
	ID       uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	Username string          `gorm:"unique;not null" json:"username"`                      // Unique username
	Password string          `gorm:"not null" json:"-"`                                    // Hashed password
	Role     string          `gorm:"default:user" json:"role"`                             // Role: user or admin
	Status   UserStatus      `gorm:"type:varchar(16);default:pending" json:"status"`       // Approval status: pending or approved
	Balance  decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"balance"` // Custodial balance, never negative
}
