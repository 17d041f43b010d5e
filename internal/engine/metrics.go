package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWagersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_wagers_placed_total",
		Help: "Apostas aceitas pelo engine",
	})
	metricRoundsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_rounds_resolved_total",
		Help: "Rodadas resolvidas",
	})
	metricRoundsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_rounds_cancelled_total",
		Help: "Rodadas canceladas (operador ou fallback sem apostadores)",
	})
	metricClaimsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_claims_paid_total",
		Help: "Saques de prêmio pagos",
	})
	metricRefundsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_refunds_paid_total",
		Help: "Estornos pagos",
	})
	metricTransferFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_transfer_failures_total",
		Help: "Transferências externas que falharam e abortaram a operação",
	})
)
