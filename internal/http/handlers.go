// Package http exposes the watchers over HTTP. Each GET of a location drains
// that location's mailbox: the response is either the newest undelivered
// outcome or 204 when nothing new has arrived since the previous request.
// Nothing is cached, so two requests never see the same update.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-watch-service/internal/lifecycle"
	"github.com/kjstillabower/weather-watch-service/internal/models"
	"github.com/kjstillabower/weather-watch-service/internal/watch"
)

// Watcher is the consumer-side surface of one background poller.
type Watcher interface {
	TryTake() (watch.Outcome, bool)
	State() watch.State
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	watchers  map[string]Watcher
	logger    *zap.Logger
	startTime time.Time

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler serving the given watchers, keyed by
// normalized location.
func NewHandler(watchers map[string]Watcher, logger *zap.Logger) *Handler {
	return &Handler{
		watchers:  watchers,
		logger:    logger,
		startTime: time.Now(),
	}
}

// NormalizeLocation is the key form used for the watcher map and URL paths.
func NormalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// updateResponse is one drained outcome.
type updateResponse struct {
	Seq    uint64                 `json:"seq"`
	Report *models.CurrentWeather `json:"report"`
}

// GetUpdate handles GET /weather/{location}. It performs a non-blocking probe
// of the location's mailbox; 204 means no new outcome since the last probe.
// Failed poll outcomes are reported as upstream errors, but each one is
// likewise delivered at most once.
func (h *Handler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	location := NormalizeLocation(mux.Vars(r)["location"])
	if location == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "location is required")
		return
	}

	poller, ok := h.watchers[location]
	if !ok {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_LOCATION", "location is not watched")
		return
	}

	out, ok := poller.TryTake()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if out.OK() {
		writeJSON(w, http.StatusOK, updateResponse{Seq: out.Seq, Report: out.Report})
		return
	}
	writeOutcomeError(w, r, out.Err)
}

// writeOutcomeError maps a failed poll outcome onto an HTTP error response.
func writeOutcomeError(w http.ResponseWriter, r *http.Request, detail *watch.ErrorDetail) {
	switch detail.Kind {
	case watch.KindAwaitingFirstResult:
		writeError(w, r, http.StatusServiceUnavailable, "LOADING", detail.Message)
	case watch.KindRemoteStatus:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_STATUS", detail.Message)
	case watch.KindParseFailure:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_MALFORMED", detail.Message)
	default:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNREACHABLE", detail.Message)
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("failed outcome served", zap.String("kind", detail.Kind.String()), zap.Int("status_code", detail.StatusCode))
	}
}

// GetHealth handles GET /health. The service is healthy while every watcher's
// background loop is alive; a stopped watcher in serve mode means its loop
// died and reports go stale.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if lifecycle.IsShuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "shutting-down",
		})
		return
	}

	status := "ok"
	statusCode := http.StatusOK
	watchers := make(map[string]string, len(h.watchers))
	for location, poller := range h.watchers {
		state := poller.State()
		watchers[location] = state.String()
		if state == watch.Stopped {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
	}

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != status && h.logger != nil {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	writeJSON(w, statusCode, map[string]interface{}{
		"status":        status,
		"watchers":      watchers,
		"uptimeSeconds": int64(time.Since(h.startTime).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
