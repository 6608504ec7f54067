// Package relay contains the core: admission policy, topic resolution,
// message dispatch, edit propagation and the engine that drives them
// off the event bus.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/topicgate/topicgate/internal/bus"
)

// PublishFunc receives the outcome of every admitted inbound event.
// Used to feed the optional audit stream; must never block for long.
type PublishFunc func(ctx context.Context, outcome Outcome, msg *bus.InboundMessage)

// Engine consumes the inbound bus and runs each event to completion on
// a bounded worker pool. Transport failures are contained per message;
// nothing escapes the loop.
type Engine struct {
	bus        *bus.EventBus
	policy     *Policy
	dispatcher *Dispatcher
	edits      *EditPropagator
	registry   *Registry
	publish    PublishFunc
	workers    int
}

// NewEngine wires the engine. registry and publish may be nil.
func NewEngine(b *bus.EventBus, policy *Policy, dispatcher *Dispatcher, edits *EditPropagator, registry *Registry, publish PublishFunc, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		bus:        b,
		policy:     policy,
		dispatcher: dispatcher,
		edits:      edits,
		registry:   registry,
		publish:    publish,
		workers:    workers,
	}
}

// Run consumes the bus until ctx is cancelled, then drains in-flight
// handlers before returning. Stores stay open for the whole drain.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Relay engine started", "workers", e.workers)

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for {
		msg, err := e.bus.ConsumeInbound(ctx)
		if err != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(msg *bus.InboundMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			e.handle(ctx, msg)
		}(msg)
	}

	wg.Wait()
	slog.Info("Relay engine drained")
}

func (e *Engine) handle(ctx context.Context, msg *bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panic", "chat", msg.ChatID, "message", msg.ID, "trace_id", msg.TraceID, "panic", r)
		}
	}()

	if e.registry != nil && !msg.System {
		if err := e.registry.Observe(msg); err != nil {
			slog.Warn("Chat registry update failed", "chat", msg.ChatID, "error", err)
		}
	}

	if !e.policy.Admit(msg) {
		slog.Debug("Message not admitted", "chat", msg.ChatID, "sender", msg.SenderID, "trace_id", msg.TraceID)
		return
	}

	var (
		outcome Outcome
		err     error
	)
	if msg.Edit {
		outcome, err = e.edits.PropagateEdit(ctx, msg)
	} else {
		outcome, err = e.dispatcher.Relay(ctx, msg)
	}
	if err != nil {
		slog.Error("Relay failed", "chat", msg.ChatID, "message", msg.ID, "edit", msg.Edit, "trace_id", msg.TraceID, "error", err)
	}

	if e.publish != nil {
		e.publish(ctx, outcome, msg)
	}
}
