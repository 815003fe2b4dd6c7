package models

import (
	"time"

	"afiliapix/internal/money"
)

const (
	WithdrawalStatusPending      = "pending"
	WithdrawalStatusRejected     = "rejected"
	WithdrawalStatusConfirmed    = "confirmed"
	WithdrawalStatusDebitPending = "debit_pending"
)

// Withdrawal records a cash-out attempt. Its ID doubles as the gateway
// idempotency key: retrying the same logical withdrawal never creates
// a second payout at the provider.
type Withdrawal struct {
	ID         string         `gorm:"primaryKey;size:36"`
	UserID     string         `gorm:"size:36;not null;index"`
	Amount     money.Centavos `gorm:"not null"`
	Fee        money.Centavos `gorm:"not null"`
	NetAmount  money.Centavos `gorm:"not null"`
	PixKey     string         `gorm:"size:140;not null"`
	PixKeyType string         `gorm:"size:20;not null"`
	Status     string         `gorm:"size:20;not null;index"`
	GatewayRef string         `gorm:"size:64"`
	FailReason *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
