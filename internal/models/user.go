package models

import (
	"time"

	"afiliapix/internal/money"
)

type User struct {
	ID           string         `gorm:"primaryKey;size:36"`
	Email        string         `gorm:"size:255;uniqueIndex"`
	Balance      money.Centavos `gorm:"not null;default:0"`
	IsActive     bool           `gorm:"not null;default:false"`
	ActivePlan   string         `gorm:"size:20;not null;default:'nenhum'"`
	ReferrerL1ID *string        `gorm:"size:36;index"`
	ReferrerL2ID *string        `gorm:"size:36;index"`
	PixKey       string         `gorm:"size:140"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
