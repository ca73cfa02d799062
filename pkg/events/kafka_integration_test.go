//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

func TestKafkaPublisher(t *testing.T) {
	ctx := context.Background()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v23.3.3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	pub, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{broker}})
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.EnsureTopics(ctx, 1, 1))
	require.NoError(t, pub.EnsureTopics(ctx, 1, 1), "existing topics are not an error")

	bus := NewBus()
	require.NoError(t, bus.Subscribe("kafka", pub))
	bus.LoginAborted(ctx, LoginAborted{Realm: realm.Backend, Reason: reason.AccountCreationNotAllowed, SubjectID: "abc", At: time.Now()})
	require.NoError(t, pub.Flush(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics("sso.login.aborted"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.Empty(t, fetches.Errors())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "backend", string(records[0].Key))

	var got LoginAborted
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, reason.AccountCreationNotAllowed, got.Reason)
	assert.Equal(t, "abc", got.SubjectID)
}
