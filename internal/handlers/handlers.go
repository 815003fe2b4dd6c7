package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"afiliapix/internal/apperr"
	"afiliapix/internal/charge"
	"afiliapix/internal/config"
	"afiliapix/internal/middleware"
	"afiliapix/internal/money"
	"afiliapix/internal/settlement"
	"afiliapix/internal/syncpay"
	"afiliapix/internal/withdrawal"
)

type Handlers struct {
	Settlement  *settlement.Processor
	Charges     *charge.Issuer
	Withdrawals *withdrawal.Processor
	Log         *zap.Logger
}

func New(settlementProc *settlement.Processor, issuer *charge.Issuer, withdrawalProc *withdrawal.Processor, log *zap.Logger) *Handlers {
	return &Handlers{
		Settlement:  settlementProc,
		Charges:     issuer,
		Withdrawals: withdrawalProc,
		Log:         log,
	}
}

func (h *Handlers) Register(r *gin.Engine, cfg *config.Config) {
	r.Use(middleware.SetupCORS(cfg.CORSOrigins))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := r.Group("/api/webhooks")
	webhooks.Use(middleware.WebhookIPAllowlist(cfg.WebhookAllowedCIDRs))
	webhooks.POST("/syncpay", h.handleWebhook)

	authed := r.Group("/api")
	authed.Use(middleware.Auth(cfg.JWTSecret))
	authed.POST("/charges", h.handleCreateCharge)
	authed.POST("/withdrawals", h.handleWithdrawal)
}

func (h *Handlers) handleWebhook(c *gin.Context) {
	ev, err := settlement.ParseEvent(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.Settlement.Process(c.Request.Context(), ev)
	if err != nil {
		h.fail(c, err)
		return
	}

	switch outcome {
	case settlement.OutcomeIgnored:
		c.JSON(http.StatusOK, gin.H{"message": "Ignore non-paid status"})
	case settlement.OutcomeDuplicate:
		c.JSON(http.StatusOK, gin.H{"message": "Payment already processed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Payment processed"})
	}
}

type createChargeRequest struct {
	Amount json.Number `json:"amount"`
	PlanID string      `json:"planId"`
}

func (h *Handlers) handleCreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requisição inválida"})
		return
	}

	var amount money.Centavos
	if req.Amount != "" {
		var err error
		amount, err = money.ParseReal(req.Amount.String())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valor inválido"})
			return
		}
	}

	payload, err := h.Charges.CreateCharge(c.Request.Context(), c.GetString("userID"), req.PlanID, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

type withdrawalRequest struct {
	Amount     json.Number `json:"amount"`
	PixKey     string      `json:"pixKey"`
	PixKeyType string      `json:"pixKeyType"`
}

func (h *Handlers) handleWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requisição inválida"})
		return
	}

	amount, err := money.ParseReal(req.Amount.String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valor inválido"})
		return
	}

	conf, err := h.Withdrawals.Request(c.Request.Context(), c.GetString("userID"), amount, req.PixKey, req.PixKeyType)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Saque processado com sucesso", "data": conf})
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *Handlers) fail(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	var nf *apperr.NotFoundError
	var ge *syncpay.Error
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Message})
	case errors.As(err, &ge):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "falha no provedor de pagamento"})
	default:
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
	}
}
