package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerDebits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_debits_total",
			Help: "Successful debit operations by reason.",
		},
		[]string{"reason"},
	)

	ledgerCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_credits_total",
			Help: "Credit operations by reason (refund, cardkey, invite, checkin, admin).",
		},
		[]string{"reason"},
	)

	ledgerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rejected_total",
			Help: "Ledger operations rejected by a business rule.",
		},
		[]string{"op", "rule"},
	)
)

func IncDebit(reason string)      { ledgerDebits.WithLabelValues(reason).Inc() }
func IncCredit(reason string)     { ledgerCredits.WithLabelValues(reason).Inc() }
func IncRejected(op, rule string) { ledgerRejected.WithLabelValues(op, rule).Inc() }
