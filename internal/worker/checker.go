package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"afiliapix/internal/ledger"
	"afiliapix/internal/models"
)

// Checker sweeps the background invariants the request path cannot
// hold on its own: pending charges past their payment window, and
// withdrawals whose payout left but whose ledger debit still needs
// replay.
type Checker struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Ledger   *ledger.Store
	Log      *zap.Logger
	Interval time.Duration
}

func NewChecker(db *gorm.DB, rdb *redis.Client, ledgerStore *ledger.Store, log *zap.Logger) *Checker {
	return &Checker{
		DB:       db,
		Redis:    rdb,
		Ledger:   ledgerStore,
		Log:      log,
		Interval: time.Minute,
	}
}

func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	c.Log.Info("background sweeper started")

	// Run once at start
	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Checker) sweep(ctx context.Context) {
	if !c.acquireLease(ctx) {
		return
	}
	c.expireCharges(ctx)
	c.replayDebits(ctx)
}

// acquireLease lets only one replica sweep per interval.
func (c *Checker) acquireLease(ctx context.Context) bool {
	if c.Redis == nil {
		return true
	}
	ok, err := c.Redis.SetNX(ctx, "sweep_lease", "1", c.Interval).Result()
	if err != nil {
		c.Log.Warn("sweep lease check failed, sweeping anyway", zap.Error(err))
		return true
	}
	return ok
}

func (c *Checker) expireCharges(ctx context.Context) {
	res := c.DB.WithContext(ctx).Model(&models.Charge{}).
		Where("status = ? AND expires_at < ?", models.ChargeStatusPending, time.Now()).
		UpdateColumn("status", models.ChargeStatusExpired)
	if res.Error != nil {
		c.Log.Error("failed to expire stale charges", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		c.Log.Info("expired stale charges", zap.Int64("count", res.RowsAffected))
	}
}

func (c *Checker) replayDebits(ctx context.Context) {
	var pending []models.Withdrawal
	err := c.DB.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusDebitPending).
		Find(&pending).Error
	if err != nil {
		c.Log.Error("failed to query pending debits", zap.Error(err))
		return
	}

	for _, wd := range pending {
		total := wd.Amount + wd.Fee
		_, err := c.Ledger.Adjust(ctx, wd.UserID, -total)
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			// Balance still short; try again next sweep.
			c.Log.Warn("debit replay still short on balance",
				zap.String("withdrawal_id", wd.ID),
				zap.String("user_id", wd.UserID),
				zap.String("total_debit", total.String()))
			continue
		}
		if err != nil {
			c.Log.Error("debit replay failed",
				zap.String("withdrawal_id", wd.ID),
				zap.Error(err))
			continue
		}
		err = c.DB.WithContext(ctx).Model(&models.Withdrawal{}).
			Where("id = ?", wd.ID).
			UpdateColumn("status", models.WithdrawalStatusConfirmed).Error
		if err != nil {
			c.Log.Error("failed to confirm replayed withdrawal",
				zap.String("withdrawal_id", wd.ID),
				zap.Error(err))
			continue
		}
		c.Log.Info("replayed ledger debit",
			zap.String("withdrawal_id", wd.ID),
			zap.String("user_id", wd.UserID),
			zap.String("total_debit", total.String()))
	}
}
