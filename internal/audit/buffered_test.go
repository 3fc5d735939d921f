package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweave/agentweave/internal/core/ports"
)

func TestBufferedSink_DeliversToUnderlying(t *testing.T) {
	underlying := &recordingSink{}
	buffered := NewBufferedSink(context.Background(), underlying, 4)
	defer buffered.Close()

	require.NoError(t, buffered.Record(context.Background(), sampleEvent("a")))

	assert.Eventually(t, func() bool {
		return len(underlying.events) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), buffered.Lost())
}

func TestBufferedSink_DropsAndCountsWhenQueueFull(t *testing.T) {
	blocker := make(chan struct{})
	slow := &blockingSink{release: blocker}
	buffered := NewBufferedSink(context.Background(), slow, 1)
	defer func() {
		close(blocker)
		buffered.Close()
	}()

	// First event gets picked up by the drain worker and blocks there;
	// the next ones saturate the size-1 queue and must be dropped.
	require.NoError(t, buffered.Record(context.Background(), sampleEvent("1")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, buffered.Record(context.Background(), sampleEvent("2")))
	require.NoError(t, buffered.Record(context.Background(), sampleEvent("3")))

	assert.Eventually(t, func() bool {
		return buffered.Lost() >= 1
	}, time.Second, 10*time.Millisecond)
}

type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Record(ctx context.Context, event ports.AuditEvent) error {
	<-b.release
	return nil
}

func (b *blockingSink) Close() error { return nil }
