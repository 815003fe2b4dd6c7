package models

import (
	"time"

	"afiliapix/internal/money"
)

const (
	ChargeStatusPending = "pending"
	ChargeStatusSettled = "settled"
	ChargeStatusExpired = "expired"
)

// Charge is a persisted payment intent. Its ID is the external_id
// echoed back by the gateway webhook, so two distinct charges by the
// same user settle independently.
type Charge struct {
	ID        string         `gorm:"primaryKey;size:36"`
	UserID    string         `gorm:"size:36;not null;index"`
	PlanID    string         `gorm:"size:20;not null"`
	Amount    money.Centavos `gorm:"not null"`
	Status    string         `gorm:"size:20;not null;index"`
	Payload   string         `gorm:"size:512"`
	ExpiresAt time.Time      `gorm:"index"`
	SettledAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
