// Package api exposes the bot's HTTP surface: health, session status,
// the Telegram webhook and Prometheus metrics.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tube-courier/internal/housekeeper"
	"tube-courier/internal/platform/metrics"
	"tube-courier/internal/session"
)

const diskProbeTimeout = 2 * time.Second

// Sessions reads session state for the status endpoint.
type Sessions interface {
	Session(sid session.ID) (session.Session, error)
	Progress(sid session.ID) (int, bool)
}

// Stats reports aggregate counts for health and metrics.
type Stats interface {
	CountByState() map[session.State]int
}

// ActiveCounter reports how many downloads are running.
type ActiveCounter interface {
	Len() int
}

// UpdateSink accepts webhook updates.
type UpdateSink interface {
	Submit(update tgbotapi.Update)
}

// Config configures the handler.
type Config struct {
	// WebhookToken is the path secret of POST /telegram/{token}. Empty
	// disables the webhook route.
	WebhookToken string
	DownloadDir  string
}

// Handler exposes the HTTP endpoints using go-chi.
type Handler struct {
	cfg      Config
	sessions Sessions
	stats    Stats
	active   ActiveCounter
	updates  UpdateSink
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler. updates may be nil when the bot long-polls.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(cfg Config, sessions Sessions, stats Stats, active ActiveCounter, updates UpdateSink, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		stats:    stats,
		active:   active,
		updates:  updates,
		log:      log,
		metrics:  m,
	}
}

type healthResponse struct {
	Status          string         `json:"status"`
	Sessions        map[string]int `json:"sessions"`
	ActiveDownloads int            `json:"active_downloads"`
	DiskFreeBytes   *uint64        `json:"disk_free_bytes,omitempty"`
}

// Health handles GET / and GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:          "ok",
		Sessions:        h.sessionCounts(),
		ActiveDownloads: h.active.Len(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), diskProbeTimeout)
	defer cancel()
	if usage, err := housekeeper.DiskUsage(ctx, h.cfg.DownloadDir); err == nil {
		free := usage.Free
		resp.DiskFreeBytes = &free
	} else {
		h.log.Debug("disk usage unavailable", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, resp)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Progress  int    `json:"progress"`
	Title     string `json:"title"`
	Chosen    string `json:"chosen,omitempty"`
	Failure   string `json:"failure,omitempty"`
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sid := session.ID(chi.URLParam(r, "session_id"))
	if sid == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Session(sid)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("get session failed", slog.String("session_id", string(sid)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	progress, _ := h.sessions.Progress(sid)
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: string(sess.ID),
		State:     string(sess.State),
		Progress:  progress,
		Title:     sess.Reference.Title,
		Chosen:    sess.Chosen,
		Failure:   sess.Failure,
	})
}

// Webhook handles POST /telegram/{token}.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if h.updates == nil || h.cfg.WebhookToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.WebhookToken)) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Debug("invalid webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.updates.Submit(update)
	w.WriteHeader(http.StatusOK)
}

// RefreshGauges copies live counts into the Prometheus gauges.
func (h *Handler) RefreshGauges() {
	h.metrics.SetSessions(h.sessionCounts())
	h.metrics.SetActiveDownloads(h.active.Len())
}

func (h *Handler) sessionCounts() map[string]int {
	out := make(map[string]int)
	for state, n := range h.stats.CountByState() {
		out[string(state)] = n
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
