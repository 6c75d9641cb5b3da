package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yusiwen/rtsp4k/models"
)

// Metrics holds relay counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesRelayed atomic.Uint64
	FramesResized atomic.Uint64
	RelayFailures atomic.Uint64

	routeFrames   *prometheus.CounterVec
	routeFailures *prometheus.CounterVec
	operations    *prometheus.CounterVec

	statesLock sync.RWMutex
	states     func() map[models.SessionState]int

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "rtsp4k_frames_relayed_total",
			Help: "Frames published across all relays",
		},
		func() float64 { return float64(m.FramesRelayed.Load()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "rtsp4k_frames_resized_total",
			Help: "Frames scaled before publishing",
		},
		func() float64 { return float64(m.FramesResized.Load()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "rtsp4k_relay_failures_total",
			Help: "Relays that ended in the failed state",
		},
		func() float64 { return float64(m.RelayFailures.Load()) },
	))

	m.routeFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtsp4k_route_frames_total",
		Help: "Frames published per route",
	}, []string{"route"})
	m.routeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtsp4k_route_failures_total",
		Help: "Relay failures per route and stage",
	}, []string{"route", "stage"})
	m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtsp4k_registry_operations_total",
		Help: "Registry operations by result",
	}, []string{"op", "result"})
	m.registry.MustRegister(m.routeFrames, m.routeFailures, m.operations)

	for _, st := range models.SessionStates {
		st := st
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        "rtsp4k_sessions",
				Help:        "Sessions currently known to the registry",
				ConstLabels: prometheus.Labels{"state": st.String()},
			},
			func() float64 { return float64(m.sessionCount(st)) },
		))
	}
}

// WatchSessions installs the callback backing the rtsp4k_sessions gauges.
func (m *Metrics) WatchSessions(f func() map[models.SessionState]int) {
	if m == nil {
		return
	}
	m.statesLock.Lock()
	m.states = f
	m.statesLock.Unlock()
}

func (m *Metrics) sessionCount(st models.SessionState) int {
	m.statesLock.RLock()
	f := m.states
	m.statesLock.RUnlock()
	if f == nil {
		return 0
	}
	return f()[st]
}

func (m *Metrics) FrameRelayed(route string, resized bool) {
	if m == nil {
		return
	}
	m.FramesRelayed.Add(1)
	if resized {
		m.FramesResized.Add(1)
	}
	m.routeFrames.WithLabelValues(route).Inc()
}

func (m *Metrics) RelayFailed(route, stage string) {
	if m == nil {
		return
	}
	m.RelayFailures.Add(1)
	m.routeFailures.WithLabelValues(route, stage).Inc()
}

func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// Forget drops the per-route series of a removed route.
func (m *Metrics) Forget(route string) {
	if m == nil {
		return
	}
	m.routeFrames.DeleteLabelValues(route)
	m.routeFailures.DeletePartialMatch(prometheus.Labels{"route": route})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
