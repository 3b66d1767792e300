package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics exposes the engine's operational counters and accounting
// gauges to Prometheus scrapes.
type VaultMetrics struct {
	deposits        prometheus.Counter
	withdrawals     prometheus.Counter
	harvests        prometheus.Counter
	claims          prometheus.Counter
	shortPays       prometheus.Counter
	feeSharesMinted prometheus.Counter
	totalHoldings   prometheus.Gauge
	totalShares     prometheus.Gauge
	rejectedCalls   *prometheus.CounterVec
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_deposits_total",
				Help: "Count of successful deposits.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_withdrawals_total",
				Help: "Count of successful withdrawals.",
			}),
			harvests: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_harvests_total",
				Help: "Count of executed harvests.",
			}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_profit_claims_total",
				Help: "Count of protocol profit claims.",
			}),
			shortPays: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_short_pays_total",
				Help: "Count of withdrawals paid below the requested amount.",
			}),
			feeSharesMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_fee_shares_minted_total",
				Help: "Cumulative protocol-fee shares minted by harvests.",
			}),
			totalHoldings: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_holdings",
				Help: "Float plus delegated holdings in base asset units.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_shares",
				Help: "Outstanding share supply.",
			}),
			rejectedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_rejected_calls_total",
				Help: "Count of failed operations by method.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.harvests,
			vaultRegistry.claims,
			vaultRegistry.shortPays,
			vaultRegistry.feeSharesMinted,
			vaultRegistry.totalHoldings,
			vaultRegistry.totalShares,
			vaultRegistry.rejectedCalls,
		)
	})
	return vaultRegistry
}

func gaugeValue(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (m *VaultMetrics) ObserveDeposit() {
	if m == nil {
		return
	}
	m.deposits.Inc()
}

func (m *VaultMetrics) ObserveWithdrawal(shortPaid bool) {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
	if shortPaid {
		m.shortPays.Inc()
	}
}

func (m *VaultMetrics) ObserveHarvest(feeShares *big.Int) {
	if m == nil {
		return
	}
	m.harvests.Inc()
	if feeShares != nil && feeShares.Sign() > 0 {
		m.feeSharesMinted.Add(gaugeValue(feeShares))
	}
}

func (m *VaultMetrics) ObserveClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

func (m *VaultMetrics) ObserveRejected(method string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.rejectedCalls.WithLabelValues(method).Inc()
}

func (m *VaultMetrics) SetTotals(holdings, shares *big.Int) {
	if m == nil {
		return
	}
	m.totalHoldings.Set(gaugeValue(holdings))
	m.totalShares.Set(gaugeValue(shares))
}
