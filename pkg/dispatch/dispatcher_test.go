package dispatch_test

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/relay/pkg/adapters/memory"
	"github.com/aretw0/relay/pkg/conversation"
	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/persistence/middleware"
	"github.com/aretw0/relay/pkg/policy"
	"github.com/aretw0/relay/pkg/ports"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/aretw0/relay/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice int64 = 1
	bob   int64 = 2
	group int64 = -100
)

type notice struct {
	Actor int64
	Text  string
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
	faults  []error
}

func (r *recorder) Notify(ctx context.Context, ev domain.Event, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{Actor: ev.ActorID, Text: text})
	return nil
}

func (r *recorder) Report(ctx context.Context, ev domain.Event, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, err)
}

func (r *recorder) Notices() []notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notice(nil), r.notices...)
}

func (r *recorder) Faults() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.faults...)
}

type fixture struct {
	d        *dispatch.Dispatcher
	sessions *session.Manager
	rec      *recorder
	calls    *sync.Map
}

func (f *fixture) called(name string) int {
	v, ok := f.calls.Load(name)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int32).Load())
}

func count(calls *sync.Map, name string) routing.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		v, _ := calls.LoadOrStore(name, new(atomic.Int32))
		v.(*atomic.Int32).Add(1)
		return nil
	}
}

func settingsWorkflow() *conversation.Workflow {
	return conversation.NewWorkflow("settings").
		On(domain.StateStart, func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			if s.PinnedMessageID == 0 {
				s.PinnedMessageID = 500
			}
			return "Menu", nil
		}, "Menu").
		On("Menu", func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			switch ev.Payload {
			case "SET+close":
				return domain.StateEnd, nil
			case "SET+boom":
				return "Menu", errors.New("storage down")
			case "SET+fatal":
				return domain.StateEnd, errors.New("unrecoverable")
			case "SET+panic":
				panic("nil menu")
			}
			s.Data["choice"] = ev.Payload
			return "Menu", nil
		}, "Menu", domain.StateEnd)
}

func helpWorkflow() *conversation.Workflow {
	return conversation.NewWorkflow("help").
		On(domain.StateStart, func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			s.Data["page"] = ev.Payload
			return "Browse", nil
		}, "Browse").
		On("Browse", func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			return domain.StateEnd, nil
		}, domain.StateEnd)
}

func newFixture(t *testing.T, admins ports.AdminChecker, extra ...func(*routing.Builder, *sync.Map)) *fixture {
	t.Helper()
	calls := &sync.Map{}

	b := routing.NewBuilder()
	b.Command("weather", count(calls, "weather"))
	b.Command("ban", count(calls, "ban")).GroupOnly().AdminOnly()
	b.Command("crash", func(ctx context.Context, ev domain.Event) error { panic("boom") })
	b.Callback("page", "PAGE", count(calls, "page"))
	b.Callback("page-last", "PAGE+last", count(calls, "page-last"))
	b.Text("hello", `(?i)\bhello\b`, count(calls, "hello"))
	b.Text("greeting", `(?i)^hello`, func(ctx context.Context, ev domain.Event) error { return errors.New("quota") })
	b.Text("dev-echo", `(?i)hello`, count(calls, "dev-echo")).DevOnly()
	b.Conversation("settings", settingsWorkflow()).Trigger("settings").GroupOnly()
	b.Conversation("help", helpWorkflow()).EntryOnCallback("HELP")
	for _, fn := range extra {
		fn(b, calls)
	}

	rec := &recorder{}
	sessions := session.NewManager(memory.NewStore())
	d := dispatch.New(b.Build(), policy.NewGate([]int64{99}, admins), sessions,
		dispatch.WithNotifier(rec),
		dispatch.WithReporter(rec),
	)
	return &fixture{d: d, sessions: sessions, rec: rec, calls: calls}
}

func cmd(actor int64, text string) domain.Event {
	return domain.Event{ActorID: actor, ChatID: group, ChatType: domain.ChatSupergroup, Kind: domain.KindCommand, Payload: text}
}

func click(actor int64, origin int, payload string) domain.Event {
	return domain.Event{ActorID: actor, ChatID: group, ChatType: domain.ChatSupergroup, Kind: domain.KindCallback, OriginMessageID: origin, Payload: payload}
}

func text(actor int64, body string) domain.Event {
	return domain.Event{ActorID: actor, ChatID: group, ChatType: domain.ChatSupergroup, Kind: domain.KindText, Payload: body}
}

func TestDispatch_StartAndFinishConversation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.d.Dispatch(ctx, cmd(alice, "/settings"))
	require.Equal(t, dispatch.OutcomeStarted, res.Outcome)
	assert.Equal(t, "settings", res.Route)

	s, err := f.sessions.Get(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Menu", s.State)
	assert.Equal(t, 500, s.PinnedMessageID)

	res = f.d.Dispatch(ctx, click(alice, 500, "SET+lang"))
	require.Equal(t, dispatch.OutcomeContinued, res.Outcome)
	s, _ = f.sessions.Get(ctx, alice)
	assert.Equal(t, "SET+lang", s.Data["choice"])

	res = f.d.Dispatch(ctx, click(alice, 500, "SET+close"))
	require.Equal(t, dispatch.OutcomeEnded, res.Outcome)
	s, _ = f.sessions.Get(ctx, alice)
	assert.Nil(t, s)
	assert.Empty(t, f.rec.Notices())
}

func TestDispatch_CallbackOnForeignMenuIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, cmd(alice, "/settings")).Outcome)
	before, _ := f.sessions.Get(ctx, alice)

	res := f.d.Dispatch(ctx, click(bob, 500, "SET+lang"))
	assert.Equal(t, dispatch.OutcomeHijack, res.Outcome)
	assert.Equal(t, []notice{{Actor: bob, Text: dispatch.NoticeNotYours}}, f.rec.Notices())

	after, _ := f.sessions.Get(ctx, alice)
	assert.Equal(t, before.State, after.State)
	assert.Nil(t, after.Data["choice"])

	bobs, _ := f.sessions.Get(ctx, bob)
	assert.Nil(t, bobs, "no session is created for the intruder")
}

func TestDispatch_ForeignClickLeavesBothSessions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, cmd(alice, "/settings")).Outcome)
	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, click(bob, 200, "HELP+intro")).Outcome)
	aliceBefore, _ := f.sessions.Get(ctx, alice)
	bobBefore, _ := f.sessions.Get(ctx, bob)
	require.Equal(t, 200, bobBefore.PinnedMessageID)

	res := f.d.Dispatch(ctx, click(bob, 500, "SET+lang"))
	assert.Equal(t, dispatch.OutcomeHijack, res.Outcome)

	aliceAfter, _ := f.sessions.Get(ctx, alice)
	assert.Equal(t, aliceBefore, aliceAfter)

	bobAfter, _ := f.sessions.Get(ctx, bob)
	require.NotNil(t, bobAfter)
	assert.Equal(t, "Browse", bobAfter.State)
	assert.Equal(t, 200, bobAfter.PinnedMessageID)
	assert.Equal(t, bobBefore, bobAfter)
}

func TestDispatch_UnreadableSessionDoesNotBlockCallbacks(t *testing.T) {
	ctx := context.Background()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	underlying := memory.NewStore()
	// Written before encryption was enabled.
	stale := domain.NewSession(777, group, "settings")
	stale.PinnedMessageID = 900
	require.NoError(t, underlying.Put(ctx, stale))
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlying)

	calls := &sync.Map{}
	b := routing.NewBuilder()
	b.Callback("page", "PAGE", count(calls, "page"))
	rec := &recorder{}
	d := dispatch.New(b.Build(), policy.NewGate(nil, nil), session.NewManager(store), dispatch.WithReporter(rec))

	res := d.Dispatch(ctx, click(alice, 42, "PAGE+2"))
	require.NoError(t, res.Err)
	assert.Equal(t, dispatch.OutcomeRouted, res.Outcome)
	assert.Equal(t, "page", res.Route)
	assert.Empty(t, rec.Faults())
}

func TestDispatch_SamePinnedIDInAnotherChatIsNotAHijack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, cmd(alice, "/settings")).Outcome)

	ev := click(bob, 500, "PAGE+2")
	ev.ChatID = -200
	res := f.d.Dispatch(ctx, ev)
	assert.Equal(t, dispatch.OutcomeRouted, res.Outcome)
	assert.Equal(t, 1, f.called("page"))
}

func TestDispatch_CommandBypassesActiveSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, cmd(alice, "/settings")).Outcome)
	before, _ := f.sessions.Get(ctx, alice)

	res := f.d.Dispatch(ctx, cmd(alice, "/weather@relaybot Lisbon"))
	assert.Equal(t, dispatch.OutcomeRouted, res.Outcome)
	assert.Equal(t, "weather", res.Route)
	assert.Equal(t, 1, f.called("weather"))

	after, _ := f.sessions.Get(ctx, alice)
	require.NotNil(t, after)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "session untouched")
}

func TestDispatch_TriggerCommandRestartsConversation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.d.Dispatch(ctx, cmd(alice, "/settings"))
	f.d.Dispatch(ctx, click(alice, 500, "SET+lang"))

	res := f.d.Dispatch(ctx, cmd(alice, "/settings"))
	require.Equal(t, dispatch.OutcomeStarted, res.Outcome)

	s, _ := f.sessions.Get(ctx, alice)
	require.NotNil(t, s)
	assert.Equal(t, "Menu", s.State)
	assert.Nil(t, s.Data["choice"], "previous session discarded")
}

func TestDispatch_GroupOnlyConversationInPrivateChat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ev := cmd(alice, "/settings")
	ev.ChatID = alice
	ev.ChatType = domain.ChatPrivate

	res := f.d.Dispatch(ctx, ev)
	assert.Equal(t, dispatch.OutcomeDenied, res.Outcome)
	assert.Equal(t, domain.DenyGroupOnly, res.Reason)
	assert.Equal(t, []notice{{Actor: alice, Text: policy.Notice(domain.DenyGroupOnly)}}, f.rec.Notices())

	s, _ := f.sessions.Get(ctx, alice)
	assert.Nil(t, s)
}

func TestDispatch_EntryPointStartsFromCallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.d.Dispatch(ctx, click(alice, 77, "HELP+commands"))
	require.Equal(t, dispatch.OutcomeStarted, res.Outcome)
	assert.Equal(t, "help", res.Route)

	s, _ := f.sessions.Get(ctx, alice)
	require.NotNil(t, s)
	assert.Equal(t, 77, s.PinnedMessageID)
	assert.Equal(t, "HELP+commands", s.Data["page"])
}

func TestDispatch_EntryPointDeniedForAll(t *testing.T) {
	f := newFixture(t, nil, func(b *routing.Builder, calls *sync.Map) {
		b.Conversation("audit", helpWorkflow()).EntryOnCallback("AUDIT").DevOnly()
	})

	res := f.d.Dispatch(context.Background(), click(alice, 5, "AUDIT+open"))
	assert.Equal(t, dispatch.OutcomeDenied, res.Outcome)
	assert.Equal(t, "audit", res.Route)
	assert.Equal(t, domain.DenyNotDev, res.Reason)
	assert.Len(t, f.rec.Notices(), 1)
}

func TestDispatch_LongestCallbackPrefixWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, "page-last", f.d.Dispatch(ctx, click(alice, 1, "PAGE+last")).Route)
	assert.Equal(t, "page", f.d.Dispatch(ctx, click(alice, 1, "PAGE+3")).Route)
	assert.Equal(t, dispatch.OutcomeNoRoute, f.d.Dispatch(ctx, click(alice, 1, "PAGER")).Outcome)
}

func TestDispatch_NoRoute(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, dispatch.OutcomeNoRoute, f.d.Dispatch(ctx, cmd(alice, "/unknown")).Outcome)
	assert.Equal(t, dispatch.OutcomeNoRoute, f.d.Dispatch(ctx, text(alice, "nothing here")).Outcome)
	assert.Equal(t, dispatch.OutcomeNoRoute, f.d.Dispatch(ctx, domain.Event{ActorID: alice, Kind: domain.KindOther}).Outcome)
	assert.Empty(t, f.rec.Notices())
}

func TestDispatch_TextFanOutIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)

	res := f.d.Dispatch(context.Background(), text(alice, "hello world"))
	assert.Equal(t, dispatch.OutcomeRouted, res.Outcome)
	assert.Equal(t, []string{"hello"}, res.Invoked, "failing trigger reported, dev trigger silently skipped")
	assert.Equal(t, 1, f.called("hello"))
	assert.Equal(t, 0, f.called("dev-echo"))

	var fault *domain.HandlerFault
	require.ErrorAs(t, res.Err, &fault)
	assert.Equal(t, "greeting", fault.Route)
	assert.Len(t, f.rec.Faults(), 1)
	assert.Empty(t, f.rec.Notices())
}

func TestDispatch_TextTriggersRunForDevs(t *testing.T) {
	f := newFixture(t, nil)

	res := f.d.Dispatch(context.Background(), text(99, "say hello"))
	assert.Equal(t, []string{"hello", "dev-echo"}, res.Invoked)
}

func TestDispatch_HandlerPanicIsContained(t *testing.T) {
	f := newFixture(t, nil)

	res := f.d.Dispatch(context.Background(), cmd(alice, "/crash"))
	assert.Equal(t, dispatch.OutcomeFailed, res.Outcome)

	var fault *domain.HandlerFault
	require.ErrorAs(t, res.Err, &fault)
	assert.Equal(t, "boom", fault.Panic)
	assert.Equal(t, []notice{{Actor: alice, Text: dispatch.NoticeFailure}}, f.rec.Notices())
	assert.Len(t, f.rec.Faults(), 1)
}

type failingAdmins struct{}

func (failingAdmins) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return false, errors.New("platform timeout")
}

func TestDispatch_AdminQueryFailureIsAFault(t *testing.T) {
	f := newFixture(t, failingAdmins{})

	res := f.d.Dispatch(context.Background(), cmd(alice, "/ban"))
	assert.Equal(t, dispatch.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, policy.ErrAdminQuery)
	assert.Equal(t, 0, f.called("ban"))
	assert.Equal(t, []notice{{Actor: alice, Text: dispatch.NoticeFailure}}, f.rec.Notices())
}

func TestDispatch_AdminOnly(t *testing.T) {
	f := newFixture(t, policy.StaticAdmins{group: {alice}})
	ctx := context.Background()

	assert.Equal(t, dispatch.OutcomeRouted, f.d.Dispatch(ctx, cmd(alice, "/ban")).Outcome)

	res := f.d.Dispatch(ctx, cmd(bob, "/ban"))
	assert.Equal(t, dispatch.OutcomeDenied, res.Outcome)
	assert.Equal(t, domain.DenyNotAdmin, res.Reason)

	assert.Equal(t, dispatch.OutcomeRouted, f.d.Dispatch(ctx, cmd(99, "/ban")).Outcome, "devs pass admin checks")
	assert.Equal(t, 2, f.called("ban"))
}

func TestDispatch_StepErrorStillAdvances(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.d.Dispatch(ctx, cmd(alice, "/settings"))
	res := f.d.Dispatch(ctx, click(alice, 500, "SET+boom"))
	assert.Equal(t, dispatch.OutcomeFailed, res.Outcome)

	s, _ := f.sessions.Get(ctx, alice)
	require.NotNil(t, s, "non-terminal next state is kept")
	assert.Equal(t, "Menu", s.State)
}

func TestDispatch_TerminalStepErrorRemovesSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, payload := range []string{"SET+fatal", "SET+panic"} {
		t.Run(payload, func(t *testing.T) {
			f.d.Dispatch(ctx, cmd(alice, "/settings"))
			res := f.d.Dispatch(ctx, click(alice, 500, payload))
			assert.Equal(t, dispatch.OutcomeFailed, res.Outcome)

			s, _ := f.sessions.Get(ctx, alice)
			assert.Nil(t, s)
		})
	}
}

func TestDispatch_OrphanSessionFallsThrough(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.sessions.Put(ctx, &domain.Session{UserID: alice, ChatID: group, Workflow: "retired", State: "X"}))

	res := f.d.Dispatch(ctx, click(alice, 3, "PAGE+1"))
	assert.Equal(t, dispatch.OutcomeRouted, res.Outcome)

	s, _ := f.sessions.Get(ctx, alice)
	assert.Nil(t, s)
}

func TestDispatch_CancelledContextLeavesSession(t *testing.T) {
	f := newFixture(t, nil)
	f.d.Dispatch(context.Background(), cmd(alice, "/settings"))
	before, _ := f.sessions.Get(context.Background(), alice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := f.d.Dispatch(ctx, click(alice, 500, "SET+close"))
	assert.Equal(t, dispatch.OutcomeCancelled, res.Outcome)

	after, _ := f.sessions.Get(context.Background(), alice)
	require.NotNil(t, after)
	assert.Equal(t, before.State, after.State)
}

func TestDispatch_ConcurrentCallbacksAreSerialized(t *testing.T) {
	counter := conversation.NewWorkflow("counter").
		On(domain.StateStart, func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			s.Data["n"] = 0
			return "Count", nil
		}, "Count").
		On("Count", func(ctx context.Context, ev domain.Event, s *domain.Session) (string, error) {
			n := s.Data["n"].(int)
			time.Sleep(time.Millisecond)
			s.Data["n"] = n + 1
			return "Count", nil
		}, "Count")

	f := newFixture(t, nil, func(b *routing.Builder, calls *sync.Map) {
		b.Conversation("counter", counter).EntryOnCallback("CNT")
	})
	ctx := context.Background()
	require.Equal(t, dispatch.OutcomeStarted, f.d.Dispatch(ctx, click(alice, 8, "CNT")).Outcome)

	const clicks = 40
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.d.Dispatch(ctx, click(alice, 8, fmt.Sprintf("CNT+%d", i)))
		}(i)
	}
	wg.Wait()

	s, _ := f.sessions.Get(ctx, alice)
	require.NotNil(t, s)
	assert.Equal(t, clicks, s.Data["n"], "no lost updates")
}

func TestDispatch_Hooks(t *testing.T) {
	var (
		mu      sync.Mutex
		before  []string
		after   []string
		results []dispatch.Outcome
	)
	f := newFixture(t, nil)
	b := routing.NewBuilder()
	b.Command("weather", func(ctx context.Context, ev domain.Event) error { return nil })
	b.Conversation("settings", settingsWorkflow()).Trigger("settings")

	d := dispatch.New(b.Build(), policy.NewGate(nil, nil), f.sessions, dispatch.WithHooks(dispatch.Hooks{
		BeforeInvoke: func(ctx context.Context, inv dispatch.Invocation) {
			mu.Lock()
			defer mu.Unlock()
			before = append(before, string(inv.Kind)+":"+inv.Route)
		},
		AfterInvoke: func(ctx context.Context, inv dispatch.Invocation, elapsed time.Duration, err error) {
			mu.Lock()
			defer mu.Unlock()
			after = append(after, inv.Route)
		},
		OnResult: func(ctx context.Context, ev domain.Event, res dispatch.Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, res.Outcome)
		},
	}))

	ctx := context.Background()
	d.Dispatch(ctx, cmd(alice, "/weather"))
	d.Dispatch(ctx, cmd(alice, "/settings"))
	d.Dispatch(ctx, cmd(alice, "/nope"))

	assert.Equal(t, []string{"command:weather", "conversation:settings"}, before)
	assert.Equal(t, []string{"weather", "settings"}, after)
	assert.Equal(t, []dispatch.Outcome{dispatch.OutcomeRouted, dispatch.OutcomeStarted, dispatch.OutcomeNoRoute}, results)
}
