package alert

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/novakeep/herald/internal/observe"
)

// PresenceReader reports whether the designated speaker is in voice.
type PresenceReader interface {
	Present() bool
}

// Server handles POST /alert webhook ingress. Requests carry a Bearer token;
// a mismatch is rejected with 401 before anything touches the inbox.
type Server struct {
	inbox    *Inbox
	token    string
	presence PresenceReader
	metrics  *observe.Metrics
	log      *slog.Logger
}

// NewServer creates a Server feeding inbox. metrics may be nil in tests.
func NewServer(inbox *Inbox, token string, presence PresenceReader, metrics *observe.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{inbox: inbox, token: token, presence: presence, metrics: metrics, log: log}
}

// Register adds the /alert route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /alert", s.handleAlert)
}

// alertRequest is the webhook request body.
type alertRequest struct {
	Message     string `json:"message"`
	Priority    string `json:"priority"`
	FullDetails string `json:"fullDetails"`
	Source      string `json:"source"`
}

// alertResponse is the webhook reply.
type alertResponse struct {
	OK          bool `json:"ok"`
	Queued      bool `json:"queued"`
	UserInVoice bool `json:"userInVoice"`
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	priority := PriorityNormal
	switch req.Priority {
	case "", string(PriorityNormal):
	case string(PriorityUrgent):
		priority = PriorityUrgent
	default:
		writeError(w, http.StatusBadRequest, "priority must be urgent or normal")
		return
	}

	s.inbox.Push(Alert{
		Priority:    priority,
		Message:     strings.TrimSpace(req.Message),
		FullDetails: req.FullDetails,
		Source:      req.Source,
	})
	if s.metrics != nil {
		s.metrics.RecordAlert(r.Context(), string(priority))
	}

	inVoice := s.presence != nil && s.presence.Present()
	s.log.Info("alert queued", "priority", priority, "source", req.Source, "user_in_voice", inVoice)

	writeJSON(w, http.StatusOK, alertResponse{OK: true, Queued: true, UserInVoice: inVoice})
}

// authorized compares the Bearer token in constant time. An empty configured
// token rejects everything; the ingress is never open by accident.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	got, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
