package services

import "github.com/prometheus/client_golang/prometheus"

// walletOps counts wallet mutations by wallet name, operation and result.
// Wallet names come from configuration, so cardinality stays bounded.
var walletOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet credit and debit operations by wallet, op and result.",
	},
	[]string{"wallet", "op", "result"}, // op: add_paid, add_free, spend; result: ok, rejected, error
)

func init() {
	prometheus.MustRegister(walletOps)
}

func recordWalletOp(wallet, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case isRejection(err):
		result = "rejected"
	default:
		result = "error"
	}
	walletOps.WithLabelValues(wallet, op, result).Inc()
}
