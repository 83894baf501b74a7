package metrics

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// API
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests."},
		[]string{"handler", "method", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms..~10s
		},
		[]string{"handler", "method"},
	)
	CampaignCreate = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_create_total", Help: "Campaign create results."},
		[]string{"result"}, // ok | duplicate | invalid | error
	)

	// Dispatch
	InboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "inbound_messages_total", Help: "Inbound messages by dispatch outcome."},
		[]string{"outcome"}, // unmatched | sent | failed | lookup_failed
	)
	CarrierSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carrier_send_total", Help: "Carrier send outcomes."},
		[]string{"outcome"}, // sent | failed
	)
	CarrierSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carrier_send_duration_seconds",
			Help:    "Carrier send latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms..~40s
		},
	)
	MessageLogWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "message_log_write_failures_total", Help: "Dispatch attempts whose log entry could not be written.",
	})
)

var registerOnce sync.Once

// MustRegister adds the application collectors to the default registry,
// which already carries the Go and process collectors. Safe to call more
// than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequests, HTTPDuration, CampaignCreate,
			InboundMessages, CarrierSend, CarrierSendDuration, MessageLogWriteFailures,
		)
	})
}

// PGXPoolStats exports pgxpool statistics.
type PGXPoolStats struct {
	pool *pgxpool.Pool

	conns          prometheus.Gauge
	idle           prometheus.Gauge
	acquireCount   prometheus.Gauge
	acquireLatency prometheus.Gauge
}

func NewPGXPoolStats(pool *pgxpool.Pool, reg prometheus.Registerer) *PGXPoolStats {
	m := &PGXPoolStats{
		pool: pool,
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_conns", Help: "Total connections in pool.",
		}),
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_idle_conns", Help: "Idle connections in pool.",
		}),
		// pgxpool reports cumulative values, so these are gauges mirroring them.
		acquireCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_acquires", Help: "Cumulative pool acquires.",
		}),
		acquireLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_acquire_seconds", Help: "Cumulative acquire latency.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.conns, m.idle, m.acquireCount, m.acquireLatency)
	return m
}

func (m *PGXPoolStats) Start(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			m.collect()
		}
	}
}

func (m *PGXPoolStats) collect() {
	s := m.pool.Stat()
	m.conns.Set(float64(s.TotalConns()))
	m.idle.Set(float64(s.IdleConns()))
	m.acquireCount.Set(float64(s.AcquireCount()))
	m.acquireLatency.Set(s.AcquireDuration().Seconds())
}
