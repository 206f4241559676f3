//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"privid/pkg/testutil/containers"
)

func TestKafkaEmit(t *testing.T) {
	broker := containers.StartRedpanda(t)
	ctx := context.Background()

	pub, err := NewKafka(KafkaConfig{
		Brokers: broker,
		Topic:   "privid.lifecycle.test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	subject := "did:pid:testnet:0123456789abcdef0123456789abcdef"
	emitted := []Event{
		NewEvent(TypeDIDCreated, subject, nil),
		NewEvent(TypeCredentialIssued, subject, map[string]string{"credential_type": "AgeCredential"}),
		NewEvent(TypeProofGenerated, subject, map[string]string{"proof_id": "proof-1"}),
	}
	for _, ev := range emitted {
		require.NoError(t, pub.Emit(ctx, ev))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics("privid.lifecycle.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var got []Event
	for len(got) < len(emitted) {
		fetches := consumer.PollFetches(deadline)
		require.NoError(t, fetches.Err())
		fetches.EachRecord(func(rec *kgo.Record) {
			assert.Equal(t, subject, string(rec.Key))
			var ev Event
			require.NoError(t, json.Unmarshal(rec.Value, &ev))
			got = append(got, ev)
		})
	}

	require.Len(t, got, len(emitted))
	for i, ev := range emitted {
		assert.Equal(t, ev.ID, got[i].ID)
		assert.Equal(t, ev.Type, got[i].Type)
		assert.Equal(t, ev.Detail, got[i].Detail)
	}
}

func TestKafkaEmitAfterClose(t *testing.T) {
	broker := containers.StartRedpanda(t)

	pub, err := NewKafka(KafkaConfig{
		Brokers: broker,
		Topic:   "privid.lifecycle.closed",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	err = pub.Emit(context.Background(), NewEvent(TypeDIDCreated, "did:pid:testnet:aa", nil))
	require.Error(t, err)
}
