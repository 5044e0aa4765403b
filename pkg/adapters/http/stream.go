package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
)

// ResultEvent is the SSE payload for one dispatched event.
type ResultEvent struct {
	EventID string `json:"event_id"`
	UserID  int64  `json:"user_id"`
	ChatID  int64  `json:"chat_id"`
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
	Route   string `json:"route,omitempty"`
}

// StreamManager fans dispatch results out to SSE subscribers. Subscribers of
// user 0 receive every result.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[int64]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(userID int64) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[userID]; !ok {
		sm.subscribers[userID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[userID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[userID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, userID)
			}
		}
	}
}

func (sm *StreamManager) broadcast(userID int64, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	keys := []int64{0}
	if userID != 0 {
		keys = append(keys, userID)
	}
	for _, key := range keys {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Slow client.
				sm.logger.Warn("SSE: Client buffer full, dropping message", "user_id", userID)
			}
		}
	}
}

// Publish is a dispatch OnResult hook.
func (sm *StreamManager) Publish(ctx context.Context, ev domain.Event, res dispatch.Result) {
	data, err := json.Marshal(ResultEvent{
		EventID: ev.ID,
		UserID:  ev.ActorID,
		ChatID:  ev.ChatID,
		Kind:    string(ev.Kind),
		Outcome: string(res.Outcome),
		Route:   res.Route,
	})
	if err != nil {
		return
	}
	sm.broadcast(ev.ActorID, string(data))
}
