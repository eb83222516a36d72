package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RewardsMetrics tracks transaction processing and token issuance.
type RewardsMetrics struct {
	transactions *prometheus.CounterVec
	applyLatency *prometheus.HistogramVec
	minted       prometheus.Counter
	saturated    prometheus.Counter
	rejected     *prometheus.CounterVec
	subscribers  prometheus.Gauge
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_transactions_total",
				Help: "Applied transactions by operation and status.",
			}, []string{"type", "status"}),
			applyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "rewards_apply_duration_seconds",
				Help:    "Time spent applying a transaction, commit included.",
				Buckets: prometheus.DefBuckets,
			}, []string{"type"}),
			minted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rewards_minted_units_total",
				Help: "Reward token base units minted.",
			}),
			saturated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rewards_mint_saturated_total",
				Help: "Mints whose amount was capped at the maximum representable value.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rewards_rejections_total",
				Help: "Rejected program calls by reason.",
			}, []string{"reason"}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rewards_event_subscribers",
				Help: "Open websocket event subscriptions.",
			}),
		}
		prometheus.MustRegister(
			rewardsRegistry.transactions,
			rewardsRegistry.applyLatency,
			rewardsRegistry.minted,
			rewardsRegistry.saturated,
			rewardsRegistry.rejected,
			rewardsRegistry.subscribers,
		)
	})
	return rewardsRegistry
}

func (m *RewardsMetrics) ObserveTransaction(txType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(txType, status).Inc()
	m.applyLatency.WithLabelValues(txType).Observe(elapsed.Seconds())
}

func (m *RewardsMetrics) RecordMint(amount uint64, saturated bool) {
	if m == nil {
		return
	}
	m.minted.Add(float64(amount))
	if saturated {
		m.saturated.Inc()
	}
}

func (m *RewardsMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "other"
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *RewardsMetrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *RewardsMetrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
