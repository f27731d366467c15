package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Connection metrics
	activeConnections *prometheus.GaugeVec
	handshakes        *prometheus.CounterVec
	writeIdleCloses   *prometheus.CounterVec
	backlogDeferrals  *prometheus.CounterVec
	listenOverflows   prometheus.Counter

	// Frame metrics
	framesReceived *prometheus.CounterVec // by role and RT id
	framesSent     *prometheus.CounterVec // by role and RT id
	decodeErrors   *prometheus.CounterVec
	rawMessages    *prometheus.CounterVec // unknown RT ids and unknown app tags

	// Application metrics
	logins      *prometheus.CounterVec // by status
	gamesActive prometheus.Gauge
	gamesReaped prometheus.Counter

	// Performance metrics
	tickDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		activeConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medius_active_connections",
				Help: "Current number of open connections per role",
			},
			[]string{"role"},
		),
		handshakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_handshakes_completed_total",
				Help: "Connections that reached the authenticated state",
			},
			[]string{"role"},
		),
		writeIdleCloses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_write_idle_closes_total",
				Help: "Connections closed because no flush succeeded within the write-idle timeout",
			},
			[]string{"role"},
		),
		backlogDeferrals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_outbound_deferrals_total",
				Help: "Flushes deferred to the next tick because the transport was not writable",
			},
			[]string{"role"},
		),
		listenOverflows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "medius_listen_overflows_total",
				Help: "Connections the kernel dropped because a listen backlog was full",
			},
		),
		framesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_frames_received_total",
				Help: "RT frames received by role and message id",
			},
			[]string{"role", "id"},
		),
		framesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_frames_sent_total",
				Help: "RT frames sent by role and message id",
			},
			[]string{"role", "id"},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_decode_errors_total",
				Help: "Frames that failed to decrypt or decode",
			},
			[]string{"role"},
		),
		rawMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_raw_messages_total",
				Help: "Messages with no registered schema",
			},
			[]string{"role", "layer"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medius_logins_total",
				Help: "Account login results by status",
			},
			[]string{"status"},
		),
		gamesActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "medius_games_active",
				Help: "Games currently registered",
			},
		),
		gamesReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "medius_games_reaped_total",
				Help: "Games destroyed by the reaper after closing",
			},
		),
		tickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medius_tick_duration_seconds",
				Help:    "Time taken by one dispatcher tick",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
	}
}

func (m *Metrics) RecordActiveConnections(role Role, count int) {
	m.activeConnections.WithLabelValues(string(role)).Set(float64(count))
}

func (m *Metrics) RecordHandshake(role Role) {
	m.handshakes.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) RecordWriteIdleClose(role Role) {
	m.writeIdleCloses.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) RecordDeferral(role Role) {
	m.backlogDeferrals.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) RecordListenOverflows(n uint64) {
	m.listenOverflows.Add(float64(n))
}

func (m *Metrics) RecordFrameReceived(role Role, id uint8) {
	m.framesReceived.WithLabelValues(string(role), idLabel(id)).Inc()
}

func (m *Metrics) RecordFrameSent(role Role, id uint8) {
	m.framesSent.WithLabelValues(string(role), idLabel(id)).Inc()
}

func (m *Metrics) RecordDecodeError(role Role) {
	m.decodeErrors.WithLabelValues(string(role)).Inc()
}

// RecordRawMessage counts a message with no schema. layer is "rt" or "app".
func (m *Metrics) RecordRawMessage(role Role, layer string) {
	m.rawMessages.WithLabelValues(string(role), layer).Inc()
}

func (m *Metrics) RecordLogin(status string) {
	m.logins.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordGamesActive(count int) {
	m.gamesActive.Set(float64(count))
}

func (m *Metrics) RecordGameReaped() {
	m.gamesReaped.Inc()
}

func (m *Metrics) RecordTickDuration(seconds float64) {
	m.tickDuration.Observe(seconds)
}

// idLabel renders an RT id as a fixed-width hex label
func idLabel(id uint8) string {
	s := strconv.FormatUint(uint64(id), 16)
	if len(s) == 1 {
		s = "0" + s
	}
	return "0x" + s
}
