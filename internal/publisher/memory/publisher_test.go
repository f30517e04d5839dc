package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "runs", map[string]string{"run_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "runs-dlq", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "runs", msgs[0].Topic)
	require.Equal(t, "runs-dlq", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "runs", pub.Messages()[0].Topic)
}

func TestPublisherFailureAndCancellation(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("boom")
	pub.SetFailure(boom)
	_, err := pub.Publish(context.Background(), "runs", 1)
	require.ErrorIs(t, err, boom)

	pub.SetFailure(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, "runs", 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pub.Messages())
}
