package dispatch

import (
	"context"
	"log/slog"

	"github.com/aretw0/relay/pkg/domain"
)

// LogReporter is the default ports.ErrorReporter: it logs the fault.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements ports.ErrorReporter.
func (r *LogReporter) Report(ctx context.Context, ev domain.Event, err error) {
	r.Logger.Error("handler fault",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"user_id", ev.ActorID,
		"chat_id", ev.ChatID,
		"err", err,
	)
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, ev domain.Event, text string) error { return nil }
