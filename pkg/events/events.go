// Package events publishes login outcomes to interested subscribers such
// as audit sinks, rate limiters and session establishment.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

// LoginAborted is emitted once for every aborted login attempt. Identity
// fields are empty when the flow aborted before claims were fetched.
type LoginAborted struct {
	Realm      realm.Realm   `json:"realm"`
	Reason     reason.Reason `json:"reason"`
	SubjectID  string        `json:"subject_id,omitempty"`
	Email      string        `json:"email,omitempty"`
	RemoteAddr string        `json:"remote_addr,omitempty"`
	At         time.Time     `json:"at"`
}

// LoginSucceeded is emitted once for every successful login.
type LoginSucceeded struct {
	Realm      realm.Realm `json:"realm"`
	AccountID  uuid.UUID   `json:"account_id"`
	Identifier string      `json:"identifier"`
	SubjectID  string      `json:"subject_id"`
	RemoteAddr string      `json:"remote_addr,omitempty"`
	At         time.Time   `json:"at"`
}

// Publisher is what the login flow emits to.
type Publisher interface {
	LoginAborted(ctx context.Context, e LoginAborted)
	LoginSucceeded(ctx context.Context, e LoginSucceeded)
}

// Subscriber handles published events. Errors are logged by the Bus and never
// reach the login flow.
type Subscriber interface {
	OnLoginAborted(ctx context.Context, e LoginAborted) error
	OnLoginSucceeded(ctx context.Context, e LoginSucceeded) error
}

// Bus fans events out to registered subscribers, in registration name order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]Subscriber)}
}

// Subscribe registers s under name, replacing any subscriber with that name.
func (b *Bus) Subscribe(name string, s Subscriber) error {
	if name == "" || s == nil {
		return fmt.Errorf("invalid input: name and subscriber cannot be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = s
	return nil
}

// Subscribers returns the registered names.
func (b *Bus) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subscribers))
	for name := range b.subscribers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bus) LoginAborted(ctx context.Context, e LoginAborted) {
	b.each(func(name string, s Subscriber) error {
		return s.OnLoginAborted(ctx, e)
	}, "login_aborted")
}

func (b *Bus) LoginSucceeded(ctx context.Context, e LoginSucceeded) {
	b.each(func(name string, s Subscriber) error {
		return s.OnLoginSucceeded(ctx, e)
	}, "login_succeeded")
}

func (b *Bus) each(fn func(name string, s Subscriber) error, event string) {
	for _, name := range b.Subscribers() {
		b.mu.RLock()
		s, ok := b.subscribers[name]
		b.mu.RUnlock()
		if !ok {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					slog.Error("Event subscriber panicked", "subscriber", name, "event", event, "panic", p)
				}
			}()
			if err := fn(name, s); err != nil {
				slog.Warn("Event subscriber failed", "subscriber", name, "event", event, "err", err)
			}
		}()
	}
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) LoginAborted(context.Context, LoginAborted)     {}
func (Discard) LoginSucceeded(context.Context, LoginSucceeded) {}
