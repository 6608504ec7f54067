package relay

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/topicgate/topicgate/internal/bus"
)

func newTestEngine(t *testing.T, forum *fakeForum, publish PublishFunc) (*Engine, *bus.EventBus) {
	t.Helper()
	b := bus.New()
	resolver, _ := newTestResolver(t, forum)
	correlations := newTestCorrelationStore(t)
	dispatcher := NewDispatcher(forum, resolver, correlations, 50<<20)
	edits := NewEditPropagator(forum, correlations)
	registry, err := NewRegistry(filepath.Join(t.TempDir(), "chats_seen.csv"))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	policy := NewPolicy([]int64{777000}, nil, false)
	return NewEngine(b, policy, dispatcher, edits, registry, publish, 2), b
}

func runEngine(t *testing.T, e *Engine) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("engine did not drain")
		}
	}
}

func TestEngineRelaysAndReportsOutcome(t *testing.T) {
	forum := newFakeForum()

	var mu sync.Mutex
	outcomes := make(map[string]Outcome)
	seen := make(chan struct{}, 10)
	publish := func(_ context.Context, outcome Outcome, msg *bus.InboundMessage) {
		mu.Lock()
		outcomes[msg.TraceID] = outcome
		mu.Unlock()
		seen <- struct{}{}
	}

	e, b := newTestEngine(t, forum, publish)
	stop := runEngine(t, e)
	defer stop()

	msg := groupMessage(1, "hello")
	msg.TraceID = "t1"
	b.PublishInbound(msg)

	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatalf("message never handled")
	}

	mu.Lock()
	defer mu.Unlock()
	if outcomes["t1"] != OutcomeRelayed {
		t.Fatalf("expected relayed outcome, got %v", outcomes)
	}
}

func TestEngineFiltersExcludedSenders(t *testing.T) {
	forum := newFakeForum()
	e, b := newTestEngine(t, forum, nil)
	stop := runEngine(t, e)

	msg := groupMessage(1, "service ping")
	msg.SenderID = 777000
	b.PublishInbound(msg)

	// Give the worker a moment, then drain.
	time.Sleep(100 * time.Millisecond)
	stop()

	if len(forum.calls) != 0 {
		t.Fatalf("excluded sender reached the destination: %v", forum.calls)
	}
}

func TestEngineRoutesEditsSeparately(t *testing.T) {
	forum := newFakeForum()

	handled := make(chan struct{}, 10)
	e, b := newTestEngine(t, forum, func(context.Context, Outcome, *bus.InboundMessage) {
		handled <- struct{}{}
	})
	stop := runEngine(t, e)
	defer stop()

	first := groupMessage(1, "hello")
	b.PublishInbound(first)
	<-handled

	edit := groupMessage(1, "hello!")
	edit.Edit = true
	b.PublishInbound(edit)
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatalf("edit never handled")
	}

	if n := forum.callCount("editText"); n != 1 {
		t.Fatalf("expected one edit call, got %d (calls %v)", n, forum.calls)
	}
	// The edit must not have created anything new.
	if n := forum.callCount("create"); n != 1 {
		t.Fatalf("edit should reuse the existing topic, got %d creations", n)
	}
}

func TestEngineSurvivesHandlerPanic(t *testing.T) {
	forum := newFakeForum()
	forum.createFn = func(string) (int64, error) { panic("boom") }

	e, b := newTestEngine(t, forum, nil)
	stop := runEngine(t, e)
	defer stop()

	b.PublishInbound(groupMessage(1, "hello"))
	b.PublishInbound(groupMessage(2, "still here"))

	// Both handlers panic in CreateTopic; the engine must keep draining.
	deadline := time.After(5 * time.Second)
	for forum.callCount("create") < 2 {
		select {
		case <-deadline:
			t.Fatalf("engine stopped consuming after panic")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
