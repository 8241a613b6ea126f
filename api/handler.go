// Package api exposes the aggregation pipeline over HTTP and websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/history"
	"github.com/aquibsayyed9/coin-analyze/pipeline"
	"github.com/aquibsayyed9/coin-analyze/types"
)

// Aggregator runs aggregations and lists the asset catalog
type Aggregator interface {
	Run(ctx context.Context, sel types.Selection) (*types.AggregationResult, error)
	Assets(ctx context.Context) ([]types.Asset, error)
}

// Scheduler holds the scheduled selection and its latest result
type Scheduler interface {
	Last() (*types.AggregationResult, time.Time, bool)
	Selection() types.Selection
	UpdateSelection(sel types.Selection)
}

// HistoryStore lists stored runs
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Pinger reports the state of a backing service, "up" when healthy
type Pinger interface {
	Ping(ctx context.Context) string
}

// Handler implements the HTTP endpoints of the service
type Handler struct {
	aggregator Aggregator
	scheduler  Scheduler
	history    HistoryStore
	stream     *Hub
	cache      Pinger
	logger     *logrus.Logger
}

// NewHandler creates a handler. history and stream may be nil.
func NewHandler(aggregator Aggregator, scheduler Scheduler, history HistoryStore, stream *Hub, log *logrus.Logger) *Handler {
	return &Handler{
		aggregator: aggregator,
		scheduler:  scheduler,
		history:    history,
		stream:     stream,
		logger:     log,
	}
}

// SetCache adds the cache connection state to /healthz
func (h *Handler) SetCache(cache Pinger) {
	h.cache = cache
}

// RegisterRoutes registers the API routes with the provided HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// GET /api/assets - catalog listing
	mux.HandleFunc("/api/assets", corsMiddleware(h.handleAssets))

	// GET /api/volumes?assets=1,1027&exchanges=Binance - run an aggregation
	// POST /api/volumes - same with a JSON selection body
	mux.HandleFunc("/api/volumes", corsMiddleware(h.handleVolumes))

	// GET /api/volumes/latest - latest scheduled result
	mux.HandleFunc("/api/volumes/latest", corsMiddleware(h.handleLatest))

	// GET /api/selection - scheduled selection, POST to change it
	mux.HandleFunc("/api/selection", corsMiddleware(h.handleSelection))

	// GET /api/history?limit=20 - stored runs
	mux.HandleFunc("/api/history", corsMiddleware(h.handleHistory))

	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	if h.stream != nil {
		mux.HandleFunc("/ws", h.stream.ServeWS)
	}
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Error encoding response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth always answers 200 and reports the cache state when one is set
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status["cache"] = h.cache.Ping(ctx)
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assets, err := h.aggregator.Assets(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("Asset listing failed")
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
	})
}

func (h *Handler) handleVolumes(w http.ResponseWriter, r *http.Request) {
	var sel types.Selection

	switch r.Method {
	case http.MethodGet:
		sel = selectionFromQuery(r)
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.aggregator.Run(r.Context(), sel)
	if err != nil {
		h.logger.WithError(err).Warn("Aggregation request failed")
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, at, ok := h.scheduler.Last()
	if !ok {
		h.writeError(w, http.StatusNotFound, "no scheduled result yet")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"selection":    h.scheduler.Selection(),
		"refreshed_at": at,
		"result":       result,
	})
}

func (h *Handler) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, h.scheduler.Selection())

	case http.MethodPost:
		var sel types.Selection
		if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		sel.AssetIDs = cleanList(sel.AssetIDs)
		sel.Exchanges = cleanList(sel.Exchanges)
		h.scheduler.UpdateSelection(sel)

		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":   "Selection updated successfully",
			"selection": sel,
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.history == nil {
		h.writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.history.Recent(r.Context(), history.ClampLimit(limit))
	if err != nil {
		h.logger.WithError(err).Error("History query failed")
		h.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": runs,
	})
}

func selectionFromQuery(r *http.Request) types.Selection {
	query := r.URL.Query()
	return types.Selection{
		AssetIDs:  cleanList(strings.Split(query.Get("assets"), ",")),
		Exchanges: cleanList(strings.Split(query.Get("exchanges"), ",")),
	}
}

func cleanList(items []string) []string {
	out := []string{}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func statusFor(err error) int {
	var cfgErr *pipeline.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
