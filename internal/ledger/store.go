package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"afiliapix/internal/models"
	"afiliapix/internal/money"
)

var (
	// ErrInsufficientBalance means the adjustment would drive the
	// balance negative. The mutation did not happen.
	ErrInsufficientBalance = errors.New("insufficient balance")

	ErrUserNotFound = errors.New("user not found")
)

// Store holds the per-user balance. Adjust is the only mutation
// primitive: the non-negative check and the increment are a single
// conditional UPDATE, so concurrent callers never lose updates or
// observe a negative balance.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Adjust(ctx context.Context, userID string, delta money.Centavos) (money.Centavos, error) {
	return s.AdjustTx(s.db.WithContext(ctx), userID, delta)
}

// AdjustTx runs the adjustment on a caller-owned transaction so that
// settlement can commit activation and commission credits atomically.
func (s *Store) AdjustTx(tx *gorm.DB, userID string, delta money.Centavos) (money.Centavos, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND balance + ? >= 0", userID, int64(delta)).
		UpdateColumn("balance", gorm.Expr("balance + ?", int64(delta)))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, ErrUserNotFound
		}
		return 0, ErrInsufficientBalance
	}

	var balance int64
	err := tx.Model(&models.User{}).Where("id = ?", userID).Select("balance").Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return money.Centavos(balance), nil
}

// Balance reads the current balance without mutating it. Callers that
// gate on the result must still rely on Adjust for the authoritative
// check.
func (s *Store) Balance(ctx context.Context, userID string) (money.Centavos, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("balance").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}
