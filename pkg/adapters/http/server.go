package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/relay"
	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatcher is the part of the core the webhook drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) dispatch.Result
}

// SessionLister exposes active sessions for inspection.
type SessionLister interface {
	List(ctx context.Context) ([]*domain.Session, error)
}

// Server turns webhook calls into dispatched events.
type Server struct {
	Dispatcher Dispatcher
	Sessions   SessionLister
	Streams    *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithStreams shares a StreamManager, usually the one whose Publish hook is
// installed on the dispatcher.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithDispatchTimeout bounds how long one event may take.
func WithDispatchTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewHandler creates the HTTP handler.
func NewHandler(d Dispatcher, sessions SessionLister, opts ...Option) http.Handler {
	s := &Server{
		Dispatcher: d,
		Sessions:   sessions,
		logger:     logging.NewNop(),
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/events", s.PostEvent)
	r.Get("/sessions", s.ListSessions)
	r.Get("/stream", s.SubscribeResults)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// EventResponse is the body returned by POST /events.
type EventResponse struct {
	EventID string   `json:"event_id"`
	Outcome string   `json:"outcome"`
	Route   string   `json:"route,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Invoked []string `json:"invoked,omitempty"`
}

// PostEvent handles POST /events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostEvent: Invalid request body", "err", err)
		return
	}
	if ev.ActorID == 0 || ev.Kind == "" {
		http.Error(w, "actor_id and kind are required", http.StatusBadRequest)
		return
	}
	if !ev.Kind.Valid() {
		http.Error(w, fmt.Sprintf("Unknown kind %q", ev.Kind), http.StatusBadRequest)
		return
	}
	clean, err := domain.SanitizePayload(ev.Payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid payload: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostEvent: Payload rejected", "err", err, "size", len(ev.Payload))
		return
	}
	ev.Payload = clean
	if ev.ID == "" {
		ev.ID = middleware.GetReqID(r.Context())
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	res := s.Dispatcher.Dispatch(ctx, ev)

	resp := EventResponse{
		EventID: ev.ID,
		Outcome: string(res.Outcome),
		Route:   res.Route,
		Reason:  string(res.Reason),
		Invoked: res.Invoked,
	}
	// Faults are already reported and answered; the webhook only signals
	// that the platform should not retry.
	status := http.StatusOK
	if res.Outcome == dispatch.OutcomeCancelled {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.Sessions.List(r.Context())
	if err != nil {
		http.Error(w, "List error", http.StatusInternalServerError)
		s.logger.Error("ListSessions failed", "err", err)
		return
	}
	if list == nil {
		list = []*domain.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "relay-http",
		"version": strings.TrimSpace(relay.Version),
	})
}

// SubscribeResults handles GET /stream (SSE). With ?user_id= only that
// user's results are streamed.
func (s *Server) SubscribeResults(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var userID int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid user_id", http.StatusBadRequest)
			return
		}
		userID = id
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(userID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "user_id", userID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
