package referral

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"afiliapix/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// Ancestors holds the two affiliate tiers above a user. Either tier
// may be absent.
type Ancestors struct {
	Tier1 *string
	Tier2 *string
}

// Resolver reads the referrer ids precomputed at registration. No
// graph traversal happens here.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

func (r *Resolver) Ancestors(ctx context.Context, userID string) (Ancestors, error) {
	return r.AncestorsTx(r.db.WithContext(ctx), userID)
}

func (r *Resolver) AncestorsTx(tx *gorm.DB, userID string) (Ancestors, error) {
	var user models.User
	err := tx.Select("referrer_l1_id", "referrer_l2_id").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ancestors{}, ErrUserNotFound
	}
	if err != nil {
		return Ancestors{}, err
	}
	return Ancestors{Tier1: user.ReferrerL1ID, Tier2: user.ReferrerL2ID}, nil
}
