package models

import (
	"time"

	"afiliapix/internal/money"
)

// ReferralCommission is the audit record for one commission credit
// issued during settlement fan-out.
type ReferralCommission struct {
	ID            uint           `gorm:"primaryKey"`
	BeneficiaryID string         `gorm:"size:36;not null;index"`
	PayerID       string         `gorm:"size:36;not null;index"`
	ChargeID      string         `gorm:"size:36;not null;index"`
	Tier          int            `gorm:"not null"`
	Amount        money.Centavos `gorm:"not null"`
	CreatedAt     time.Time
}
