// Package api exposes the service's HTTP surface: health and status,
// Prometheus metrics, manual pipeline triggers and a read-only view of
// the loaded playbooks.
package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/playbook"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/scheduler"
)

// Server wires the HTTP handlers over the running pipelines.
type Server struct {
	httpServer *http.Server
	tasks      map[string]scheduler.Task
	playbooks  *playbook.Store
	startedAt  time.Time
	logger     zerolog.Logger
}

// NewServer creates the API server. tasks maps pipeline names to their
// tasks so detection cycles can be triggered manually; playbooks may be
// nil when the response loop is disabled.
func NewServer(port string, tasks map[string]scheduler.Task, playbooks *playbook.Store, logger zerolog.Logger) *Server {
	s := &Server{
		tasks:     tasks,
		playbooks: playbooks,
		startedAt: time.Now().UTC(),
		logger:    logger.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect/{pipeline}", s.handleDetect)
		r.Get("/playbooks", s.handlePlaybooks)
	})

	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start runs the server until Shutdown is called. http.ErrServerClosed
// is swallowed as the normal shutdown path.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Pipelines     []string `json:"pipelines"`
	Playbooks     int      `json:"playbooks"`
	MemoryRSSMB   float64  `json:"memory_rss_mb,omitempty"`
	CPUPercent    float64  `json:"cpu_percent,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:        "running",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	for name := range s.tasks {
		resp.Pipelines = append(resp.Pipelines, name)
	}
	if s.playbooks != nil {
		resp.Playbooks = s.playbooks.Current().Len()
	}

	// Process stats are best-effort; status still answers without them.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			resp.MemoryRSSMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleDetect triggers one cycle of the named pipeline and returns once
// it finishes. A cycle already in flight makes this a no-op; the skip
// shows up in the cycle metrics.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "pipeline")
	task, ok := s.tasks[name]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown pipeline: " + name})
		return
	}

	s.logger.Info().Str("pipeline", name).Msg("Manual detection cycle triggered")
	task.Run(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]string{"pipeline": name, "status": "completed"})
}

func (s *Server) handlePlaybooks(w http.ResponseWriter, _ *http.Request) {
	if s.playbooks == nil {
		s.writeJSON(w, http.StatusOK, []playbook.Playbook{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.playbooks.Current().Rules())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
