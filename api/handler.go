// Package api exposes the pipeline over HTTP: run submission, result
// listing, a websocket progress feed, health, and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/progress"
	"github.com/BaSui01/roboforge/store"
	"github.com/BaSui01/roboforge/types"
)

// Runner executes one full pipeline run.
type Runner interface {
	Execute(ctx context.Context, inputImage string) (*store.RobotRecord, error)
}

// Handler serves the roboforge HTTP API.
type Handler struct {
	runner   Runner
	repo     store.Repository
	bus      *progress.Bus
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	running  atomic.Bool
}

// NewHandler builds the API handler. bus may be nil when no progress feed
// is exposed.
func NewHandler(runner Runner, repo store.Repository, bus *progress.Bus,
	gatherer prometheus.Gatherer, logger *zap.Logger) *Handler {
	return &Handler{
		runner:   runner,
		repo:     repo,
		bus:      bus,
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/robots", h.handleCreateRobot)
	mux.HandleFunc("GET /api/robots", h.handleListRobots)
	mux.HandleFunc("GET /api/events", h.handleEvents)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return mux
}

type createRobotRequest struct {
	Image string `json:"image"`
}

type createRobotResponse struct {
	Status string `json:"status"`
}

// handleCreateRobot starts a pipeline run in the background. Only one run
// may be in flight at a time; a second submission gets 409.
func (h *Handler) handleCreateRobot(w http.ResponseWriter, r *http.Request) {
	var req createRobotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err), h.logger)
		return
	}
	if req.Image == "" {
		writeError(w, types.NewError(types.ErrInvalidRequest, "image is required"), h.logger)
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeError(w, types.NewError(types.ErrBusy, "a generation run is already in progress"), h.logger)
		return
	}

	// The run outlives the HTTP request; progress flows through the event
	// feed, not this response.
	go func() {
		defer h.running.Store(false)
		if _, err := h.runner.Execute(context.Background(), req.Image); err != nil {
			h.logger.Error("background run failed", zap.Error(err))
		}
	}()

	writeSuccess(w, http.StatusAccepted, createRobotResponse{Status: "accepted"})
}

func (h *Handler) handleListRobots(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.ListAll(r.Context())
	if err != nil {
		writeError(w, err, h.logger)
		return
	}
	if records == nil {
		records = []store.RobotRecord{}
	}
	writeSuccess(w, http.StatusOK, records)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}
