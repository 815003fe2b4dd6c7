package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"afiliapix/internal/database"
	"afiliapix/internal/ledger"
	"afiliapix/internal/models"
	"afiliapix/internal/money"
	"afiliapix/internal/plan"
)

func setupChecker(t *testing.T) (*Checker, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewChecker(db, nil, ledger.NewStore(db), zap.NewNop()), db
}

func TestSweepExpiresStaleCharges(t *testing.T) {
	c, db := setupChecker(t)
	require.NoError(t, db.Create(&models.Charge{
		ID:        "stale",
		UserID:    "u1",
		PlanID:    plan.StandardID,
		Amount:    1990,
		Status:    models.ChargeStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)
	require.NoError(t, db.Create(&models.Charge{
		ID:        "fresh",
		UserID:    "u1",
		PlanID:    plan.StandardID,
		Amount:    1990,
		Status:    models.ChargeStatusPending,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}).Error)

	c.sweep(context.Background())

	var stale, fresh models.Charge
	require.NoError(t, db.First(&stale, "id = ?", "stale").Error)
	require.Equal(t, models.ChargeStatusExpired, stale.Status)
	require.NoError(t, db.First(&fresh, "id = ?", "fresh").Error)
	require.Equal(t, models.ChargeStatusPending, fresh.Status)
}

func TestSweepDoesNotTouchSettledCharges(t *testing.T) {
	c, db := setupChecker(t)
	settledAt := time.Now()
	require.NoError(t, db.Create(&models.Charge{
		ID:        "done",
		UserID:    "u1",
		PlanID:    plan.StandardID,
		Amount:    1990,
		Status:    models.ChargeStatusSettled,
		ExpiresAt: time.Now().Add(-time.Hour),
		SettledAt: &settledAt,
	}).Error)

	c.sweep(context.Background())

	var ch models.Charge
	require.NoError(t, db.First(&ch, "id = ?", "done").Error)
	require.Equal(t, models.ChargeStatusSettled, ch.Status)
}

func TestSweepReplaysParkedDebit(t *testing.T) {
	c, db := setupChecker(t)
	require.NoError(t, db.Create(&models.User{ID: "u1", Email: "u1@example.com", Balance: 6000}).Error)
	require.NoError(t, db.Create(&models.Withdrawal{
		ID:         "wd1",
		UserID:     "u1",
		Amount:     5000,
		Fee:        plan.WithdrawalFee,
		NetAmount:  5000 - plan.WithdrawalFee,
		PixKey:     "doc@example.com",
		PixKeyType: "EMAIL",
		Status:     models.WithdrawalStatusDebitPending,
	}).Error)

	c.sweep(context.Background())

	var wd models.Withdrawal
	require.NoError(t, db.First(&wd, "id = ?", "wd1").Error)
	require.Equal(t, models.WithdrawalStatusConfirmed, wd.Status)

	var u models.User
	require.NoError(t, db.First(&u, "id = ?", "u1").Error)
	require.Equal(t, money.Centavos(6000-5000-490), u.Balance)
}

func TestSweepKeepsDebitParkedWhileShort(t *testing.T) {
	c, db := setupChecker(t)
	require.NoError(t, db.Create(&models.User{ID: "u1", Email: "u1@example.com", Balance: 100}).Error)
	require.NoError(t, db.Create(&models.Withdrawal{
		ID:         "wd1",
		UserID:     "u1",
		Amount:     5000,
		Fee:        plan.WithdrawalFee,
		NetAmount:  5000 - plan.WithdrawalFee,
		PixKey:     "doc@example.com",
		PixKeyType: "EMAIL",
		Status:     models.WithdrawalStatusDebitPending,
	}).Error)

	c.sweep(context.Background())

	// Still parked, balance untouched.
	var wd models.Withdrawal
	require.NoError(t, db.First(&wd, "id = ?", "wd1").Error)
	require.Equal(t, models.WithdrawalStatusDebitPending, wd.Status)

	var u models.User
	require.NoError(t, db.First(&u, "id = ?", "u1").Error)
	require.Equal(t, money.Centavos(100), u.Balance)

	// Once the balance recovers, the next sweep settles it.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", "u1").
		UpdateColumn("balance", 6000).Error)
	c.sweep(context.Background())

	require.NoError(t, db.First(&wd, "id = ?", "wd1").Error)
	require.Equal(t, models.WithdrawalStatusConfirmed, wd.Status)
}
