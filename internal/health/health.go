// Package health serves liveness and readiness probes for the alert webhook
// listener.
//
//   - /health  — the webhook contract: a bare {"ok":true} for external
//     monitors (the whisper sidecar speaks the same shape).
//   - /healthz — liveness; a process that serves HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes,
//     with a per-check breakdown in the body.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable and must respect ctx cancellation.
type Checker struct {
	// Name keys the check in the /readyz response ("voice", "brain", "stt").
	Name string

	Check func(ctx context.Context) error
}

// probeReply is the JSON body for /healthz and /readyz.
type probeReply struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the three probe routes. The checker list is fixed at
// construction; Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating checkers in the given order on /readyz.
func New(checkers ...Checker) *Handler {
	h := &Handler{checkers: make([]Checker, len(checkers))}
	copy(h.checkers, checkers)
	return h
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Health serves the bare {"ok":true} webhook contract.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeReply{Status: "ok"})
}

// Readyz runs every checker under a [checkTimeout] deadline and answers 200
// when all pass, 503 with the failing checks named otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	reply := probeReply{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			reply.Checks[c.Name] = "fail: " + err.Error()
			reply.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		reply.Checks[c.Name] = "ok"
	}

	writeJSON(w, code, reply)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
