package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"ph-top5-bot/internal/clock"
	"ph-top5-bot/internal/model"
	"ph-top5-bot/internal/scheduler"
	"ph-top5-bot/internal/state"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerHandle is the read/trigger surface the monitor needs from the
// orchestrator.
type SchedulerHandle interface {
	Status() scheduler.Status
	TriggerManualPoll(ctx context.Context) model.PollResult
}

// Server exposes health, status, metrics, and a manual-trigger endpoint.
type Server struct {
	addr      string
	clk       *clock.Clock
	sched     SchedulerHandle
	states    *state.Manager
	startedAt time.Time
}

func NewServer(addr string, clk *clock.Clock, sched SchedulerHandle, states *state.Manager) *Server {
	return &Server{
		addr:      addr,
		clk:       clk,
		sched:     sched,
		states:    states,
		startedAt: time.Now(),
	}
}

// Start runs the HTTP server until the context is cancelled. Satisfies
// worker.Worker.
func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/trigger", s.handleTrigger)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("monitor: server started", "addr", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		return err
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "Product Hunt Top 5 Discord Bot",
		"status": "running",
		"endpoints": map[string]string{
			"health":  "/health",
			"status":  "/status",
			"metrics": "/metrics",
			"trigger": "/trigger",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.sched.Status().IsRunning
	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timezone":  s.clk.Info(),
		"memory": map[string]uint64{
			"heap_alloc_mb": mem.HeapAlloc / 1024 / 1024,
			"heap_sys_mb":   mem.HeapSys / 1024 / 1024,
		},
		"scheduler": s.sched.Status(),
		"cache":     s.states.Stats(),
	})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	res := s.sched.TriggerManualPoll(r.Context())
	code := http.StatusOK
	if !res.Success {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]any{
		"success":          res.Success,
		"postsFetched":     res.PostsFetched,
		"changesDetected":  res.ChangesDetected,
		"messageUpdated":   res.MessageUpdated,
		"error":            res.Err,
		"nextPollDelaySec": res.NextPollDelay.Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("monitor: write response failed", "error", err)
	}
}
