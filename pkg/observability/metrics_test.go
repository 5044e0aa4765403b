package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/observability"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	var chained int
	hooks := m.Hooks(dispatch.Hooks{
		OnResult: func(ctx context.Context, ev domain.Event, res dispatch.Result) { chained++ },
	})

	ctx := context.Background()
	ev := domain.Event{Kind: domain.KindCommand, Payload: "/weather"}
	inv := dispatch.Invocation{Event: ev, Route: "weather", Kind: routing.KindCommand}

	hooks.BeforeInvoke(ctx, inv)
	hooks.AfterInvoke(ctx, inv, 20*time.Millisecond, nil)
	hooks.BeforeInvoke(ctx, inv)
	hooks.AfterInvoke(ctx, inv, 5*time.Millisecond, errors.New("down"))
	hooks.OnResult(ctx, ev, dispatch.Result{Outcome: dispatch.OutcomeRouted})
	hooks.OnResult(ctx, ev, dispatch.Result{Outcome: dispatch.OutcomeFailed})
	hooks.OnResult(ctx, ev, dispatch.Result{Outcome: dispatch.OutcomeRouted})

	assert.Equal(t, 3, chained)

	n, err := testutil.GatherAndCount(reg, "relay_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per kind/outcome pair")

	n, err = testutil.GatherAndCount(reg, "relay_invocation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "ok and error series")

	n, err = testutil.GatherAndCount(reg, "relay_invocations_in_flight")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
