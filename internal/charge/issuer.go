package charge

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"afiliapix/internal/apperr"
	"afiliapix/internal/models"
	"afiliapix/internal/money"
	"afiliapix/internal/monitoring"
	"afiliapix/internal/plan"
	"afiliapix/internal/syncpay"
)

// ChargeTTL is how long the returned payment payload stays valid on
// the paying side. The UI counts it down; the sweeper expires the row.
const ChargeTTL = 15 * time.Minute

type Gateway interface {
	CreateCharge(ctx context.Context, amount money.Centavos, externalID, description string) (*syncpay.CashInResponse, error)
}

// Payload is the displayable result of a created charge.
type Payload struct {
	ChargeID     string         `json:"charge_id"`
	Payload      string         `json:"payload"`
	QRCodeBase64 string         `json:"qrcode_base64"`
	Amount       money.Centavos `json:"-"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

type Issuer struct {
	db      *gorm.DB
	gateway Gateway
	catalog *plan.Catalog
	log     *zap.Logger
}

func NewIssuer(db *gorm.DB, gateway Gateway, catalog *plan.Catalog, log *zap.Logger) *Issuer {
	return &Issuer{db: db, gateway: gateway, catalog: catalog, log: log}
}

// CreateCharge opens a Pix cash-in for the chosen plan. amount is the
// client-reported price and, when present, must match the catalog. On
// gateway failure no local state is created.
func (i *Issuer) CreateCharge(ctx context.Context, userID, planID string, amount money.Centavos) (*Payload, error) {
	p, ok := i.catalog.ByID(planID)
	if !ok {
		return nil, apperr.Validation("plano desconhecido")
	}
	if amount != 0 && amount != p.Price {
		return nil, apperr.Validation("valor não corresponde ao plano")
	}

	correlationID := uuid.New().String()
	description := fmt.Sprintf("Pagamento %s - Pix Automático", strings.ToUpper(p.ID))

	resp, err := i.gateway.CreateCharge(ctx, p.Price, correlationID, description)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(ChargeTTL)
	ch := models.Charge{
		ID:        correlationID,
		UserID:    userID,
		PlanID:    p.ID,
		Amount:    p.Price,
		Status:    models.ChargeStatusPending,
		Payload:   resp.Payload,
		ExpiresAt: expiresAt,
	}
	if err := i.db.WithContext(ctx).Create(&ch).Error; err != nil {
		// The charge exists at the provider but not locally; a later
		// webhook for it will 404 until replayed by hand.
		i.log.Error("charge created upstream but not recorded",
			zap.String("charge_id", correlationID),
			zap.String("user_id", userID),
			zap.String("amount", p.Price.String()),
			zap.Error(err))
		monitoring.ReconciliationGapsTotal.Inc()
		return nil, fmt.Errorf("failed to record charge: %w", err)
	}
	monitoring.ChargesCreatedTotal.Inc()

	qr := resp.QRCodeBase64
	if qr == "" && resp.Payload != "" {
		qr = encodeQR(resp.Payload, i.log)
	}

	return &Payload{
		ChargeID:     correlationID,
		Payload:      resp.Payload,
		QRCodeBase64: qr,
		Amount:       p.Price,
		ExpiresAt:    expiresAt,
	}, nil
}

// encodeQR renders the copy-paste code locally when the provider did
// not include an image.
func encodeQR(payload string, log *zap.Logger) string {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		log.Warn("failed to render qr code", zap.Error(err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}
