package cli

import (
	"context"
	"log/slog"
	"time"

	httpAdapter "github.com/aretw0/relay/pkg/adapters/http"
	"github.com/aretw0/relay/pkg/dispatch"
)

func debugHooks(logger *slog.Logger) dispatch.Hooks {
	return dispatch.Hooks{
		BeforeInvoke: func(ctx context.Context, inv dispatch.Invocation) {
			logger.Debug("Invoke", "route", inv.Route, "kind", inv.Kind, "event_id", inv.Event.ID)
		},
		AfterInvoke: func(ctx context.Context, inv dispatch.Invocation, elapsed time.Duration, err error) {
			if err != nil {
				logger.Debug("Invoke Return (Error)", "route", inv.Route, "elapsed", elapsed, "err", err)
				return
			}
			logger.Debug("Invoke Return (Success)", "route", inv.Route, "elapsed", elapsed)
		},
	}
}

func streamHooks(sm *httpAdapter.StreamManager) dispatch.Hooks {
	return dispatch.Hooks{OnResult: sm.Publish}
}
