package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"afiliapix/internal/apperr"
	"afiliapix/internal/ledger"
	"afiliapix/internal/models"
	"afiliapix/internal/money"
	"afiliapix/internal/monitoring"
	"afiliapix/internal/plan"
	"afiliapix/internal/syncpay"
)

// payoutTimeout bounds the cash-out call independently of the inbound
// request: an abandoned HTTP request must not orphan an in-flight
// payout.
const payoutTimeout = 30 * time.Second

var validKeyTypes = map[string]bool{
	"CPF":    true,
	"EMAIL":  true,
	"PHONE":  true,
	"RANDOM": true,
}

type Gateway interface {
	SubmitPayout(ctx context.Context, amount money.Centavos, key, keyType, idempotencyKey string) (*syncpay.CashOutResponse, error)
}

type Confirmation struct {
	WithdrawalID string         `json:"withdrawal_id"`
	NetAmount    money.Centavos `json:"net_amount"`
	GatewayRef   string         `json:"gateway_ref"`
	Status       string         `json:"status"`
}

type Processor struct {
	db      *gorm.DB
	gateway Gateway
	ledger  *ledger.Store
	log     *zap.Logger
}

func NewProcessor(db *gorm.DB, gateway Gateway, ledgerStore *ledger.Store, log *zap.Logger) *Processor {
	return &Processor{db: db, gateway: gateway, ledger: ledgerStore, log: log}
}

// Request validates and executes a cash-out. The payout goes first; the
// ledger debit follows only after the gateway accepted it, and the
// atomic guard in the ledger is the authoritative balance check.
func (p *Processor) Request(ctx context.Context, userID string, amount money.Centavos, pixKey, pixKeyType string) (*Confirmation, error) {
	if amount < plan.MinWithdrawal {
		return nil, apperr.Validation("Mínimo de R$ 50,00 para saque.")
	}
	if pixKey == "" {
		return nil, apperr.Validation("Chave Pix obrigatória.")
	}
	if !validKeyTypes[pixKeyType] {
		return nil, apperr.Validation("Tipo de chave Pix inválido.")
	}

	total := amount + plan.WithdrawalFee

	// Advisory pre-check, for a friendly rejection before anything
	// leaves the building.
	balance, err := p.ledger.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return nil, apperr.NotFound("usuário não encontrado")
		}
		return nil, err
	}
	if balance < total {
		monitoring.WithdrawalsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.Validation("Saldo insuficiente (considerando taxa de R$ 4,90).")
	}

	wd := models.Withdrawal{
		ID:         uuid.New().String(),
		UserID:     userID,
		Amount:     amount,
		Fee:        plan.WithdrawalFee,
		NetAmount:  amount - plan.WithdrawalFee,
		PixKey:     pixKey,
		PixKeyType: pixKeyType,
		Status:     models.WithdrawalStatusPending,
	}
	if err := p.db.WithContext(ctx).Create(&wd).Error; err != nil {
		return nil, err
	}

	// Detach from the request context so a client disconnect cannot
	// lose the payout outcome mid-flight.
	payoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payoutTimeout)
	defer cancel()

	resp, err := p.gateway.SubmitPayout(payoutCtx, amount, pixKey, pixKeyType, wd.ID)
	if err != nil {
		reason := err.Error()
		p.update(&wd, map[string]interface{}{
			"status":      models.WithdrawalStatusRejected,
			"fail_reason": reason,
		})
		monitoring.WithdrawalsTotal.WithLabelValues("gateway_failed").Inc()
		return nil, err
	}

	if _, err := p.ledger.Adjust(context.WithoutCancel(ctx), userID, -total); err != nil {
		// The payout already left via the gateway. Park the debit for
		// replay instead of dropping it.
		p.log.Error("payout succeeded but ledger debit failed",
			zap.String("withdrawal_id", wd.ID),
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.String("total_debit", total.String()),
			zap.Error(err))
		monitoring.ReconciliationGapsTotal.Inc()
		p.update(&wd, map[string]interface{}{
			"status":      models.WithdrawalStatusDebitPending,
			"gateway_ref": resp.ID,
		})
		return &Confirmation{
			WithdrawalID: wd.ID,
			NetAmount:    wd.NetAmount,
			GatewayRef:   resp.ID,
			Status:       models.WithdrawalStatusDebitPending,
		}, nil
	}

	p.update(&wd, map[string]interface{}{
		"status":      models.WithdrawalStatusConfirmed,
		"gateway_ref": resp.ID,
	})
	monitoring.WithdrawalsTotal.WithLabelValues("confirmed").Inc()

	return &Confirmation{
		WithdrawalID: wd.ID,
		NetAmount:    wd.NetAmount,
		GatewayRef:   resp.ID,
		Status:       models.WithdrawalStatusConfirmed,
	}, nil
}

func (p *Processor) update(wd *models.Withdrawal, fields map[string]interface{}) {
	err := p.db.Model(&models.Withdrawal{}).Where("id = ?", wd.ID).Updates(fields).Error
	if err != nil {
		p.log.Error("failed to update withdrawal status",
			zap.String("withdrawal_id", wd.ID),
			zap.Error(err))
	}
}
