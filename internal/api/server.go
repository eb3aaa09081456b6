// Package api serves the miner's status endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/notify"
	"github.com/twin-miner/internal/storage"
	"github.com/twin-miner/internal/worker"
)

// targetIDPattern matches the ids the target table is keyed by
var targetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// PoolStatusProvider reports the search pool's state
type PoolStatusProvider interface {
	Status() worker.PoolStatus
}

// ScoreReader reads a target's stored score
type ScoreReader interface {
	ReadScore(ctx context.Context, id string) (uint8, error)
}

// NotificationStatsProvider reports discovery delivery counters
type NotificationStatsProvider interface {
	Stats() notify.DispatcherStats
}

// MinerInfo describes the running search parameters
type MinerInfo struct {
	Version            string `json:"version"`
	VersionHash        string `json:"versionHash"`
	Weights            string `json:"weights"`
	DiscoveryThreshold int    `json:"discoveryThreshold"`
	ActiveCeiling      int    `json:"activeCeiling"`
	BatchSize          uint64 `json:"batchSize"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	StoreTimeout time.Duration
	Info         MinerInfo
}

// StatusServer exposes health, pool status, per-target scores and metrics.
type StatusServer struct {
	router        *mux.Router
	httpServer    *http.Server
	pool          PoolStatusProvider
	scores        ScoreReader
	notifications NotificationStatsProvider
	gatherer      prometheus.Gatherer
	config        *ServerConfig
	logger        *logging.Logger
}

// StatusServerDeps groups the collaborators of a StatusServer. Notifications
// and Gatherer may be nil.
type StatusServerDeps struct {
	Pool          PoolStatusProvider
	Scores        ScoreReader
	Notifications NotificationStatsProvider
	Gatherer      prometheus.Gatherer
	Logger        *logging.Logger
}

// NewStatusServer creates a new status server instance.
func NewStatusServer(config *ServerConfig, deps StatusServerDeps) *StatusServer {
	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 5 * time.Second
	}

	s := &StatusServer{
		router:        mux.NewRouter(),
		pool:          deps.Pool,
		scores:        deps.Scores,
		notifications: deps.Notifications,
		gatherer:      deps.Gatherer,
		config:        config,
		logger:        logger.WithComponent("status"),
	}

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes
func (s *StatusServer) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/targets/{id}/score", s.handleTargetScore).Methods(http.MethodGet)
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Handler returns the router, mainly for tests
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "twin-miner",
		"running": s.pool.Status().Running,
	})
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	Miner         MinerInfo               `json:"miner"`
	Pool          worker.PoolStatus       `json:"pool"`
	Notifications *notify.DispatcherStats `json:"notifications,omitempty"`
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Miner: s.config.Info,
		Pool:  s.pool.Status(),
	}
	if s.notifications != nil {
		stats := s.notifications.Stats()
		resp.Notifications = &stats
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *StatusServer) handleTargetScore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !targetIDPattern.MatchString(id) {
		respondCategorized(w, apperrors.NewInvalidParameterError("id", "must be 1-128 letters, digits or _.:-"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.StoreTimeout)
	defer cancel()

	score, err := s.scores.ReadScore(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrTargetNotFound) {
			respondCategorized(w, apperrors.NewNotFoundError("target", id, err))
			return
		}
		s.logger.WithError(err).WithField("targetId", id).Error("Failed to read score")
		respondCategorized(w, apperrors.NewStoreError("read score", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"score": score,
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *StatusServer) Start() error {
	s.logger.Infof("Starting status server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down status server...")
	return s.httpServer.Shutdown(ctx)
}
