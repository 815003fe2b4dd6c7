package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChargesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "charges_created_total",
			Help: "Pix charges successfully created at the gateway",
		},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement webhook outcomes",
		},
		[]string{"outcome"},
	)

	CommissionsCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commissions_credited_total",
			Help: "Commission credits issued during settlement fan-out",
		},
		[]string{"tier"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal request outcomes",
		},
		[]string{"outcome"},
	)

	ReconciliationGapsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciliation_gaps_total",
			Help: "External actions whose ledger mutation failed and needs replay",
		},
	)
)
