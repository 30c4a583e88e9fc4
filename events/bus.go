// Package events provides the in-process domain event bus. Events are
// dispatched synchronously within the request that caused them, through
// an explicit handler registry built at wiring time.
package events

import (
	"context"
	"log"
	"sync"
)

// Event is a named domain event with an integer identifier payload
type Event interface {
	Name() string
}

// MaterialCreated fires after a material row is durably saved
type MaterialCreated struct {
	MaterialID uint
}

func (MaterialCreated) Name() string { return "material.created" }

// EnrollmentCreated fires exactly once per successful enroll call,
// after the enrollment row is durably saved
type EnrollmentCreated struct {
	EnrollmentID uint
}

func (EnrollmentCreated) Name() string { return "enrollment.created" }

// StatusCreated fires after a status post is saved
type StatusCreated struct {
	StatusID uint
}

func (StatusCreated) Name() string { return "status.created" }

// Handler consumes one event. Handler failures are logged and never
// propagated to the publisher.
type Handler func(ctx context.Context, ev Event)

// Bus is an explicit registry of event handlers
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for the named event
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish dispatches the event synchronously to every registered
// handler. A panicking handler is recovered so it cannot fail the
// triggering request or starve later handlers.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Name()]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, ev, h)
	}
}

func (b *Bus) dispatch(ctx context.Context, ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panicked on %s: %v", ev.Name(), r)
		}
	}()
	h(ctx, ev)
}
