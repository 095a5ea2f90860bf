package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HaseebLUMS/tree-sim/timing"
)

// Monitor serves the state of a running simulation over HTTP and lets a user
// pause and continue the engine.
type Monitor struct {
	engine   timing.Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	addr     string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a Monitor that listens on a random local port.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		logger: logger,
		addr:   "localhost:0",
	}
}

// WithAddress sets the host:port the monitor listens on. A port of 0 picks a
// free port.
func (m *Monitor) WithAddress(addr string) *Monitor {
	m.addr = addr
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterGatherer registers the metrics served under /metrics.
func (m *Monitor) RegisterGatherer(g prometheus.Gatherer) {
	m.gatherer = g
}

// RegisterProgressBar adds a bar to the ones listed under /api/progress.
func (m *Monitor) RegisterProgressBar(b *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, b)
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.continueEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)

	if m.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.gatherer,
			promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// StartServer starts serving in the background and returns the base URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", m.addr)
	if err != nil {
		return "", fmt.Errorf("monitor: %w", err)
	}

	m.server = &http.Server{Handler: m.Router()}

	url := "http://" + listener.Addr().String()
	m.logger.Info("monitoring simulation", "url", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", "err", err)
		}
	}()

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.hasEngine(w) {
		return
	}

	m.engine.Pause()
	m.logger.Info("engine paused", "now", m.engine.Now())
	m.writeJSON(w, map[string]bool{"paused": true})
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	if !m.hasEngine(w) {
		return
	}

	m.engine.Continue()
	m.logger.Info("engine continued", "now", m.engine.Now())
	m.writeJSON(w, map[string]bool{"paused": false})
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if !m.hasEngine(w) {
		return
	}

	m.writeJSON(w, map[string]float64{"now": m.engine.Now().Seconds()})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	usage, err := Resources()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, usage)
}

func (m *Monitor) hasEngine(w http.ResponseWriter) bool {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	if err != nil {
		m.logger.Warn("cannot write response", "err", err)
	}
}
