package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

// subscriberFuncs adapts plain functions to Subscriber. Nil funcs are skipped.
type subscriberFuncs struct {
	aborted   func(ctx context.Context, e LoginAborted) error
	succeeded func(ctx context.Context, e LoginSucceeded) error
}

func (f subscriberFuncs) OnLoginAborted(ctx context.Context, e LoginAborted) error {
	if f.aborted == nil {
		return nil
	}
	return f.aborted(ctx, e)
}

func (f subscriberFuncs) OnLoginSucceeded(ctx context.Context, e LoginSucceeded) error {
	if f.succeeded == nil {
		return nil
	}
	return f.succeeded(ctx, e)
}

func TestBusFansOut(t *testing.T) {
	bus := NewBus()

	var aborted []string
	var succeeded []string
	require.NoError(t, bus.Subscribe("b", subscriberFuncs{
		aborted: func(_ context.Context, e LoginAborted) error {
			aborted = append(aborted, "b:"+string(e.Reason))
			return nil
		},
	}))
	require.NoError(t, bus.Subscribe("a", subscriberFuncs{
		aborted: func(_ context.Context, e LoginAborted) error {
			aborted = append(aborted, "a:"+string(e.Reason))
			return errors.New("sink down")
		},
		succeeded: func(_ context.Context, e LoginSucceeded) error {
			succeeded = append(succeeded, e.Identifier)
			return nil
		},
	}))

	bus.LoginAborted(context.Background(), LoginAborted{Realm: realm.Frontend, Reason: reason.InvalidState})
	bus.LoginSucceeded(context.Background(), LoginSucceeded{Realm: realm.Frontend, Identifier: "ada"})

	assert.Equal(t, []string{"a:InvalidState", "b:InvalidState"}, aborted, "a failing subscriber does not stop the others")
	assert.Equal(t, []string{"ada"}, succeeded)
	assert.Equal(t, []string{"a", "b"}, bus.Subscribers())
}

func TestBusRecoversSubscriberPanic(t *testing.T) {
	bus := NewBus()
	called := false
	require.NoError(t, bus.Subscribe("boom", subscriberFuncs{
		aborted: func(context.Context, LoginAborted) error { panic("boom") },
	}))
	require.NoError(t, bus.Subscribe("ok", subscriberFuncs{
		aborted: func(context.Context, LoginAborted) error { called = true; return nil },
	}))

	assert.NotPanics(t, func() {
		bus.LoginAborted(context.Background(), LoginAborted{Reason: reason.Unexpected})
	})
	assert.True(t, called)
}

func TestSubscribeValidation(t *testing.T) {
	bus := NewBus()
	assert.Error(t, bus.Subscribe("", subscriberFuncs{}))
	assert.Error(t, bus.Subscribe("x", nil))

	require.NoError(t, bus.Subscribe("x", subscriberFuncs{}))
	require.NoError(t, bus.Subscribe("x", subscriberFuncs{}))
	assert.Equal(t, []string{"x"}, bus.Subscribers(), "same name replaces")
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{})
	assert.Error(t, err)
}
