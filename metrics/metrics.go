// Package metrics exposes the client's connection counters through Prometheus, grounded on the
// teacher's atomic ConnectionMetrics struct and wired to a caller-supplied prometheus.Registerer
// instead of a global default.
package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/icc/asyncerr"
)

// errAlreadyRegistered is returned by Register when called more than once on the same
// ConnectionMetrics.
var errAlreadyRegistered = errors.New("metrics: already registered")

// ConnectionMetrics holds atomic counters for one client instance. Each field is safe to
// increment from any goroutine; Register exposes them as Prometheus CounterFunc/GaugeFunc
// collectors.
type ConnectionMetrics struct {
	GetSendCount      atomic.Uint64
	ActionSendCount   atomic.Uint64
	AckRecvCount      atomic.Uint64
	NakRecvCount      atomic.Uint64
	ResponseRecvCount atomic.Uint64
	StatusRecvCount   atomic.Uint64

	ProtocolErrorCount atomic.Uint64

	InflightCount  atomic.Int64
	ReconnectCount atomic.Uint64

	registered atomic.Bool
}

func (m *ConnectionMetrics) incGetSendCount()       { m.GetSendCount.Add(1) }
func (m *ConnectionMetrics) incActionSendCount()    { m.ActionSendCount.Add(1) }
func (m *ConnectionMetrics) incAckRecvCount()       { m.AckRecvCount.Add(1) }
func (m *ConnectionMetrics) incNakRecvCount()       { m.NakRecvCount.Add(1) }
func (m *ConnectionMetrics) incResponseRecvCount()  { m.ResponseRecvCount.Add(1) }
func (m *ConnectionMetrics) incStatusRecvCount()    { m.StatusRecvCount.Add(1) }
func (m *ConnectionMetrics) incProtocolErrorCount() { m.ProtocolErrorCount.Add(1) }
func (m *ConnectionMetrics) incInflightCount()      { m.InflightCount.Add(1) }
func (m *ConnectionMetrics) decInflightCount()      { m.InflightCount.Add(-1) }
func (m *ConnectionMetrics) incReconnectCount()     { m.ReconnectCount.Add(1) }

// IncGetSendCount, IncActionSendCount, ... are the exported counter-bump hooks the protocol
// engine calls; they exist so package icc never needs direct field access.
func (m *ConnectionMetrics) IncGetSendCount()       { m.incGetSendCount() }
func (m *ConnectionMetrics) IncActionSendCount()    { m.incActionSendCount() }
func (m *ConnectionMetrics) IncAckRecvCount()       { m.incAckRecvCount() }
func (m *ConnectionMetrics) IncNakRecvCount()       { m.incNakRecvCount() }
func (m *ConnectionMetrics) IncResponseRecvCount()  { m.incResponseRecvCount() }
func (m *ConnectionMetrics) IncStatusRecvCount()    { m.incStatusRecvCount() }
func (m *ConnectionMetrics) IncProtocolErrorCount() { m.incProtocolErrorCount() }
func (m *ConnectionMetrics) IncInflightCount()      { m.incInflightCount() }
func (m *ConnectionMetrics) DecInflightCount()      { m.decInflightCount() }
func (m *ConnectionMetrics) IncReconnectCount()     { m.incReconnectCount() }

// Config controls the namespace/subsystem/registerer used by Register.
type Config struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	Registerer  prometheus.Registerer

	// AsyncQueue, if set, backs the async_error_total counter and async_error_queue_depth gauge
	// directly with the queue's own bookkeeping (Depth/TotalEnqueued) instead of a second,
	// hand-incremented counter that could drift out of sync with it.
	AsyncQueue *asyncerr.Queue
}

// Option configures a Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace. Default: "icc".
func WithNamespace(ns string) Option { return func(c *Config) { c.Namespace = ns } }

// WithSubsystem sets the metrics subsystem. Default: "".
func WithSubsystem(sub string) Option { return func(c *Config) { c.Subsystem = sub } }

// WithConstLabels sets constant labels applied to every collector.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithRegisterer sets the registry collectors are registered against. Default:
// prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = reg }
}

// WithAsyncErrorQueue wires q's own depth/total-enqueued bookkeeping into the
// async_error_queue_depth gauge and async_error_total counter, instead of those being tracked by
// a second, hand-incremented counter on ConnectionMetrics.
func WithAsyncErrorQueue(q *asyncerr.Queue) Option {
	return func(c *Config) { c.AsyncQueue = q }
}

// Register creates the Prometheus collectors backing m and registers them against the
// configured Registerer. It is safe to call at most once per ConnectionMetrics; a second call
// returns an error instead of double-registering collectors.
func (m *ConnectionMetrics) Register(opts ...Option) error {
	if !m.registered.CompareAndSwap(false, true) {
		return errAlreadyRegistered
	}

	cfg := Config{
		Namespace:  "icc",
		Registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	counters := []struct {
		name string
		help string
		val  *atomic.Uint64
	}{
		{"get_send_total", "Total number of GET commands sent.", &m.GetSendCount},
		{"action_send_total", "Total number of ACTN commands sent.", &m.ActionSendCount},
		{"ack_recv_total", "Total number of ACK frames received.", &m.AckRecvCount},
		{"nak_recv_total", "Total number of NAK frames received.", &m.NakRecvCount},
		{"response_recv_total", "Total number of RSP frames received.", &m.ResponseRecvCount},
		{"status_recv_total", "Total number of STAT frames received.", &m.StatusRecvCount},
		{"protocol_error_total", "Total number of protocol invariant violations observed.", &m.ProtocolErrorCount},
		{"reconnect_total", "Total number of reconnect attempts made.", &m.ReconnectCount},
	}

	for _, c := range counters {
		counterVal := c.val
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        c.name,
			Help:        c.help,
			ConstLabels: cfg.ConstLabels,
		}, func() float64 { return float64(counterVal.Load()) })

		if err := cfg.Registerer.Register(collector); err != nil {
			return err
		}
	}

	inflightGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "inflight_commands",
		Help:        "Number of GET/ACTN commands currently awaiting a terminal reply.",
		ConstLabels: cfg.ConstLabels,
	}, func() float64 { return float64(m.InflightCount.Load()) })

	if err := cfg.Registerer.Register(inflightGauge); err != nil {
		return err
	}

	if cfg.AsyncQueue == nil {
		return nil
	}

	asyncTotal := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "async_error_total",
		Help:        "Total number of async error events raised.",
		ConstLabels: cfg.ConstLabels,
	}, cfg.AsyncQueue.TotalEnqueued)
	if err := cfg.Registerer.Register(asyncTotal); err != nil {
		return err
	}

	asyncDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "async_error_queue_depth",
		Help:        "Number of async error descriptions currently pending dispatch.",
		ConstLabels: cfg.ConstLabels,
	}, cfg.AsyncQueue.Depth)

	return cfg.Registerer.Register(asyncDepth)
}
