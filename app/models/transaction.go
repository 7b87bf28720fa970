package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Payment provider constants used across payment-related models.
const (
	PaymentProviderStripe = "stripe"
)

// TransactionStatus is the closed set of lifecycle states for a transaction.
// A transaction starts as Created and moves exactly once into Succeeded or
// Failed; terminal states are never overwritten.
type TransactionStatus string

const (
	TransactionCreated   TransactionStatus = "created"
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether the status is a final payment outcome.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionSucceeded || s == TransactionFailed
}

// Transaction is the locally persisted record of a charge intent. Amounts are
// stored in the minor currency unit (paise/cents) as int64, never as floats.
// PaymentIntentID is the gateway-assigned identifier and the reconciliation
// key; the unique index guarantees at most one row per intent.
type Transaction struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	UserID          *uint             `gorm:"index" json:"user_id,omitempty"`
	Amount          int64             `gorm:"not null" json:"amount" validate:"gte=0"`
	Currency        string            `gorm:"type:varchar(8);not null" json:"currency" validate:"required,uppercase,min=3,max=8"`
	Status          TransactionStatus `gorm:"type:varchar(20);not null;default:'created';index" json:"status" validate:"oneof=created succeeded failed"`
	PaymentIntentID string            `gorm:"type:varchar(191);not null;uniqueIndex:ux_transactions_payment_intent_id" json:"payment_intent_id"`
	CreatedAt       time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Transaction) Validate() error {
	v := validator.New()

	return v.Struct(t)
}
