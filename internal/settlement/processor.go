package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"afiliapix/internal/apperr"
	"afiliapix/internal/ledger"
	"afiliapix/internal/models"
	"afiliapix/internal/money"
	"afiliapix/internal/monitoring"
	"afiliapix/internal/plan"
	"afiliapix/internal/referral"
)

const paidStatus = "PAID"

// dedupTTL keeps the fast-path duplicate marker long enough to absorb
// provider redelivery storms.
const dedupTTL = 48 * time.Hour

// Event is one inbound payment notification after strict parsing.
type Event struct {
	Status     string
	Amount     money.Centavos
	ExternalID string
}

// ParseEvent decodes the webhook body, rejecting unknown fields and
// anything that is not a well-formed amount.
func ParseEvent(r io.Reader) (Event, error) {
	var raw struct {
		Status     string      `json:"status"`
		Amount     json.Number `json:"amount"`
		ExternalID string      `json:"external_id"`
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Event{}, apperr.Validation("malformed webhook payload")
	}
	if raw.Status == "" || raw.ExternalID == "" || raw.Amount == "" {
		return Event{}, apperr.Validation("missing webhook fields")
	}
	amount, err := money.ParseReal(raw.Amount.String())
	if err != nil {
		return Event{}, apperr.Validation("invalid amount")
	}
	return Event{Status: raw.Status, Amount: amount, ExternalID: raw.ExternalID}, nil
}

type Outcome int

const (
	// OutcomeIgnored means a non-paid status; answered with success so
	// the provider does not redeliver uninteresting events.
	OutcomeIgnored Outcome = iota
	OutcomeApplied
	OutcomeDuplicate
)

// Processor applies a paid settlement exactly once: it flips the
// charge to settled, activates the payer and fans out at most two
// commission credits, all in a single transaction so a redelivery
// after a partial failure safely retries the whole step.
type Processor struct {
	db       *gorm.DB
	catalog  *plan.Catalog
	ledger   *ledger.Store
	resolver *referral.Resolver
	redis    *redis.Client
	log      *zap.Logger
}

func NewProcessor(db *gorm.DB, catalog *plan.Catalog, ledgerStore *ledger.Store, resolver *referral.Resolver, rdb *redis.Client, log *zap.Logger) *Processor {
	return &Processor{
		db:       db,
		catalog:  catalog,
		ledger:   ledgerStore,
		resolver: resolver,
		redis:    rdb,
		log:      log,
	}
}

func (p *Processor) Process(ctx context.Context, ev Event) (Outcome, error) {
	if ev.Status != paidStatus {
		monitoring.SettlementsTotal.WithLabelValues("ignored").Inc()
		return OutcomeIgnored, nil
	}

	matched, ok := p.catalog.ByPrice(ev.Amount)
	if !ok {
		p.log.Warn("settlement amount not in catalog",
			zap.String("external_id", ev.ExternalID),
			zap.String("amount", ev.Amount.String()))
		monitoring.SettlementsTotal.WithLabelValues("rejected").Inc()
		return 0, apperr.Validation("amount does not match any plan")
	}

	if p.seenBefore(ctx, ev.ExternalID) {
		monitoring.SettlementsTotal.WithLabelValues("duplicate").Inc()
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeApplied
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch models.Charge
		if err := tx.First(&ch, "id = ?", ev.ExternalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("unknown correlation id")
			}
			return err
		}

		// Exactly-once gate. A charge already settled (by a concurrent
		// or earlier delivery) turns this into a no-op.
		now := time.Now()
		res := tx.Model(&models.Charge{}).
			Where("id = ? AND status <> ?", ch.ID, models.ChargeStatusSettled).
			Updates(map[string]interface{}{
				"status":     models.ChargeStatusSettled,
				"settled_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			outcome = OutcomeDuplicate
			return nil
		}

		ancestors, err := p.resolver.AncestorsTx(tx, ch.UserID)
		if err != nil {
			if errors.Is(err, referral.ErrUserNotFound) {
				return apperr.NotFound("unknown user")
			}
			return err
		}

		err = tx.Model(&models.User{}).Where("id = ?", ch.UserID).Updates(map[string]interface{}{
			"is_active":   true,
			"active_plan": matched.ID,
		}).Error
		if err != nil {
			return err
		}

		if ancestors.Tier1 != nil {
			if err := p.credit(tx, *ancestors.Tier1, ch, 1, matched.CommissionL1); err != nil {
				return err
			}
		}
		if ancestors.Tier2 != nil {
			if err := p.credit(tx, *ancestors.Tier2, ch, 2, matched.CommissionL2); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var ve *apperr.ValidationError
		var nf *apperr.NotFoundError
		if !errors.As(err, &ve) && !errors.As(err, &nf) {
			// The transaction rolled back, so redelivery retries the
			// full settlement. Logged in case the provider gives up.
			p.log.Error("settlement failed, awaiting redelivery",
				zap.String("external_id", ev.ExternalID),
				zap.String("amount", ev.Amount.String()),
				zap.Error(err))
			monitoring.ReconciliationGapsTotal.Inc()
		}
		monitoring.SettlementsTotal.WithLabelValues("rejected").Inc()
		return 0, err
	}

	if outcome == OutcomeApplied {
		p.markSeen(ctx, ev.ExternalID)
	}
	monitoring.SettlementsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	return outcome, nil
}

func (p *Processor) credit(tx *gorm.DB, beneficiaryID string, ch models.Charge, tier int, amount money.Centavos) error {
	if _, err := p.ledger.AdjustTx(tx, beneficiaryID, amount); err != nil {
		// A missing ancestor row is a skip, never an error.
		if errors.Is(err, ledger.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("tier %d credit: %w", tier, err)
	}
	err := tx.Create(&models.ReferralCommission{
		BeneficiaryID: beneficiaryID,
		PayerID:       ch.UserID,
		ChargeID:      ch.ID,
		Tier:          tier,
		Amount:        amount,
	}).Error
	if err != nil {
		return fmt.Errorf("tier %d commission record: %w", tier, err)
	}
	monitoring.CommissionsCreditedTotal.WithLabelValues(strconv.Itoa(tier)).Inc()
	return nil
}

// seenBefore is a best-effort Redis short-circuit for redelivered
// webhooks. The charge status transition stays authoritative.
func (p *Processor) seenBefore(ctx context.Context, externalID string) bool {
	if p.redis == nil {
		return false
	}
	exists, err := p.redis.Exists(ctx, dedupKey(externalID)).Result()
	return err == nil && exists > 0
}

func (p *Processor) markSeen(ctx context.Context, externalID string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.Set(ctx, dedupKey(externalID), "1", dedupTTL).Err(); err != nil {
		p.log.Warn("failed to mark settlement as seen", zap.Error(err))
	}
}

func dedupKey(externalID string) string {
	return "settled_" + externalID
}

func outcomeLabel(o Outcome) string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "ignored"
	}
}
