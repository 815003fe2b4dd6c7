package settlement

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"afiliapix/internal/apperr"
	"afiliapix/internal/database"
	"afiliapix/internal/ledger"
	"afiliapix/internal/models"
	"afiliapix/internal/money"
	"afiliapix/internal/plan"
	"afiliapix/internal/referral"
)

func setupProcessor(t *testing.T) (*Processor, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	p := NewProcessor(db, plan.DefaultCatalog(), ledger.NewStore(db), referral.NewResolver(db), nil, zap.NewNop())
	return p, db
}

// seedChain creates grandparent -> parent -> payer and a pending
// charge owned by the payer.
func seedChain(t *testing.T, db *gorm.DB, chargeID, planID string, amount money.Centavos) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{ID: "avo", Email: "avo@example.com"}).Error)
	l2 := "avo"
	require.NoError(t, db.Create(&models.User{ID: "pai", Email: "pai@example.com", ReferrerL1ID: &l2}).Error)
	l1 := "pai"
	require.NoError(t, db.Create(&models.User{ID: "filho", Email: "filho@example.com", ReferrerL1ID: &l1, ReferrerL2ID: &l2}).Error)
	require.NoError(t, db.Create(&models.Charge{
		ID:        chargeID,
		UserID:    "filho",
		PlanID:    planID,
		Amount:    amount,
		Status:    models.ChargeStatusPending,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}).Error)
}

func balanceOf(t *testing.T, db *gorm.DB, id string) money.Centavos {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u.Balance
}

func TestProcessStandardSettlement(t *testing.T) {
	p, db := setupProcessor(t)
	seedChain(t, db, "ch1", plan.StandardID, 1990)

	outcome, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 1990, ExternalID: "ch1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	var payer models.User
	require.NoError(t, db.First(&payer, "id = ?", "filho").Error)
	require.True(t, payer.IsActive)
	require.Equal(t, plan.StandardID, payer.ActivePlan)

	require.Equal(t, money.Centavos(600), balanceOf(t, db, "pai"))
	require.Equal(t, money.Centavos(300), balanceOf(t, db, "avo"))

	var commissions []models.ReferralCommission
	require.NoError(t, db.Order("tier asc").Find(&commissions).Error)
	require.Len(t, commissions, 2)
	require.Equal(t, "pai", commissions[0].BeneficiaryID)
	require.Equal(t, 1, commissions[0].Tier)
	require.Equal(t, money.Centavos(600), commissions[0].Amount)
	require.Equal(t, "avo", commissions[1].BeneficiaryID)
	require.Equal(t, 2, commissions[1].Tier)
	require.Equal(t, money.Centavos(300), commissions[1].Amount)

	var ch models.Charge
	require.NoError(t, db.First(&ch, "id = ?", "ch1").Error)
	require.Equal(t, models.ChargeStatusSettled, ch.Status)
	require.NotNil(t, ch.SettledAt)
}

func TestProcessPremiumSettlement(t *testing.T) {
	p, db := setupProcessor(t)
	seedChain(t, db, "ch1", plan.PremiumID, 2990)

	outcome, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 2990, ExternalID: "ch1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	var payer models.User
	require.NoError(t, db.First(&payer, "id = ?", "filho").Error)
	require.Equal(t, plan.PremiumID, payer.ActivePlan)

	require.Equal(t, money.Centavos(1000), balanceOf(t, db, "pai"))
	require.Equal(t, money.Centavos(400), balanceOf(t, db, "avo"))
}

func TestProcessIsIdempotent(t *testing.T) {
	p, db := setupProcessor(t)
	seedChain(t, db, "ch1", plan.StandardID, 1990)
	ev := Event{Status: "PAID", Amount: 1990, ExternalID: "ch1"}

	outcome, err := p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	outcome, err = p.Process(context.Background(), ev)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)

	// Duplicate delivery must not re-credit either tier.
	require.Equal(t, money.Centavos(600), balanceOf(t, db, "pai"))
	require.Equal(t, money.Centavos(300), balanceOf(t, db, "avo"))

	var count int64
	require.NoError(t, db.Model(&models.ReferralCommission{}).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestProcessRejectsUnknownAmount(t *testing.T) {
	p, db := setupProcessor(t)
	seedChain(t, db, "ch1", plan.StandardID, 1990)

	_, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 2500, ExternalID: "ch1"})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)

	// No mutation at all.
	var payer models.User
	require.NoError(t, db.First(&payer, "id = ?", "filho").Error)
	require.False(t, payer.IsActive)
	require.Equal(t, plan.PlanNone, payer.ActivePlan)
	require.Equal(t, money.Centavos(0), balanceOf(t, db, "pai"))

	var ch models.Charge
	require.NoError(t, db.First(&ch, "id = ?", "ch1").Error)
	require.Equal(t, models.ChargeStatusPending, ch.Status)
}

func TestProcessRejectsUnknownCorrelationID(t *testing.T) {
	p, _ := setupProcessor(t)

	_, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 1990, ExternalID: "ghost"})
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestProcessIgnoresNonPaidStatus(t *testing.T) {
	p, db := setupProcessor(t)
	seedChain(t, db, "ch1", plan.StandardID, 1990)

	outcome, err := p.Process(context.Background(), Event{Status: "PENDING", Amount: 1990, ExternalID: "ch1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)

	var ch models.Charge
	require.NoError(t, db.First(&ch, "id = ?", "ch1").Error)
	require.Equal(t, models.ChargeStatusPending, ch.Status)
}

func TestProcessMissingTier2IsSkipped(t *testing.T) {
	p, db := setupProcessor(t)
	require.NoError(t, db.Create(&models.User{ID: "pai", Email: "pai@example.com"}).Error)
	l1 := "pai"
	require.NoError(t, db.Create(&models.User{ID: "filho", Email: "filho@example.com", ReferrerL1ID: &l1}).Error)
	require.NoError(t, db.Create(&models.Charge{
		ID:        "ch1",
		UserID:    "filho",
		PlanID:    plan.PremiumID,
		Amount:    2990,
		Status:    models.ChargeStatusPending,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}).Error)

	outcome, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 2990, ExternalID: "ch1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	require.Equal(t, money.Centavos(1000), balanceOf(t, db, "pai"))

	var count int64
	require.NoError(t, db.Model(&models.ReferralCommission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestProcessNoAncestorsAtAll(t *testing.T) {
	p, db := setupProcessor(t)
	require.NoError(t, db.Create(&models.User{ID: "filho", Email: "filho@example.com"}).Error)
	require.NoError(t, db.Create(&models.Charge{
		ID:        "ch1",
		UserID:    "filho",
		PlanID:    plan.StandardID,
		Amount:    1990,
		Status:    models.ChargeStatusPending,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}).Error)

	outcome, err := p.Process(context.Background(), Event{Status: "PAID", Amount: 1990, ExternalID: "ch1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)

	var payer models.User
	require.NoError(t, db.First(&payer, "id = ?", "filho").Error)
	require.True(t, payer.IsActive)
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent(strings.NewReader(`{"status":"PAID","amount":19.90,"external_id":"ch1"}`))
	require.NoError(t, err)
	require.Equal(t, Event{Status: "PAID", Amount: 1990, ExternalID: "ch1"}, ev)

	cases := []string{
		`{"status":"PAID","amount":19.90}`,
		`{"amount":19.90,"external_id":"ch1"}`,
		`{"status":"PAID","amount":"19.90","external_id":"ch1","extra":true}`,
		`{"status":"PAID","amount":19.999,"external_id":"ch1"}`,
		`not json`,
	}
	for _, body := range cases {
		_, err := ParseEvent(strings.NewReader(body))
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve, body)
	}
}
