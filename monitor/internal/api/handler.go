package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rulstream/rulstream/monitor/internal/alerts"
	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/store"
)

const maxHistoryLimit = 1000

// Handler serves /api/v1/*. History and alerts are optional.
type Handler struct {
	store   *store.Store
	history *store.History
	alerts  *alerts.Engine
	mux     *http.ServeMux
}

// New wires a Handler to its data sources. hist and al may be nil.
func New(st *store.Store, hist *store.History, al *alerts.Engine) http.Handler {
	h := &Handler{store: st, history: hist, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/engines", h.listEngines)
	h.mux.HandleFunc("/api/v1/engines/", h.engineSubtree)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/pipeline", h.pipeline)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	resp := HealthResponse{State: "unknown", AlertCount: h.firingCount()}
	snap, ok := h.store.Latest()
	if !ok {
		jsonResp(w, http.StatusOK, resp)
		return
	}
	resp.LastPoll = snap.UpdatedAt.UTC().Format(time.RFC3339)
	resp.AgeSeconds = h.store.Age().Seconds()
	if snap.NoData || snap.Fleet == nil {
		resp.State = "no_data"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	s := snap.Fleet.Summary
	resp.EngineCount = len(snap.Fleet.Engines)
	resp.HealthyCount, resp.MinorCount, resp.MajorCount, resp.BrokenCount = s.Healthy, s.Minor, s.Major, s.Broken
	resp.State = worstState(s)
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listEngines(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, h.engines())
}

// engineSubtree serves /api/v1/engines/{id} and /api/v1/engines/{id}/history.
func (h *Handler) engineSubtree(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/engines/"), "/")
	if rest == "" {
		h.listEngines(w, r)
		return
	}
	idPart, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.Atoi(idPart)
	if err != nil || id < 1 {
		jsonErr(w, http.StatusBadRequest, "engine id must be a positive integer")
		return
	}

	switch sub {
	case "":
		e, ok := h.store.Engine(id)
		if !ok {
			jsonErr(w, http.StatusNotFound, "engine not found")
			return
		}
		jsonResp(w, http.StatusOK, toEngineResponse(e))
	case "history":
		h.engineHistory(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) engineHistory(w http.ResponseWriter, r *http.Request, id int) {
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "history storage is disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	pts, err := h.history.Engine(r.Context(), id, limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pts == nil {
		pts = []store.Point{}
	}
	jsonResp(w, http.StatusOK, HistoryResponse{EngineID: id, Points: pts})
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

func (h *Handler) pipeline(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	snap, ok := h.store.Latest()
	if !ok || snap.Pipeline == nil {
		jsonErr(w, http.StatusNotFound, "pipeline metrics unavailable")
		return
	}
	jsonResp(w, http.StatusOK, snap.Pipeline)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !get(w, r) {
		return
	}
	resp := SnapshotResponse{
		Engines:     h.engines(),
		Alerts:      h.activeAlerts(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if snap, ok := h.store.Latest(); ok {
		resp.NoData = snap.NoData
		resp.Pipeline = snap.Pipeline
		resp.UpdatedAt = snap.UpdatedAt.UTC().Format(time.RFC3339)
		if snap.Fleet != nil {
			resp.Summary = snap.Fleet.Summary
			resp.Scan = snap.Fleet.Scan
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) engines() []EngineResponse {
	snap, ok := h.store.Latest()
	if !ok || snap.Fleet == nil {
		return []EngineResponse{}
	}
	out := make([]EngineResponse, 0, len(snap.Fleet.Engines))
	for _, e := range snap.Fleet.Engines {
		out = append(out, toEngineResponse(e))
	}
	return out
}

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	return h.alerts.Active()
}

func (h *Handler) firingCount() int {
	n := 0
	for _, a := range h.activeAlerts() {
		if a.State == alerts.StateFiring {
			n++
		}
	}
	return n
}

func toEngineResponse(e health.EngineHealth) EngineResponse {
	return EngineResponse{EngineHealth: e, Diagnostics: computeDiagnostics(e)}
}

// worstState names the worst status present in s.
func worstState(s health.Summary) string {
	switch {
	case s.Broken > 0:
		return strings.ToLower(string(health.StatusBroken))
	case s.Major > 0:
		return strings.ToLower(string(health.StatusMajor))
	case s.Minor > 0:
		return strings.ToLower(string(health.StatusMinor))
	case s.Healthy > 0:
		return strings.ToLower(string(health.StatusHealthy))
	default:
		return "unknown"
	}
}

func get(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
