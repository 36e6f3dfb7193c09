package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

func reading(device string, hr int) models.VitalReading {
	return models.VitalReading{DeviceID: device, HeartRate: hr, ObservedAt: time.Unix(int64(hr), 0)}
}

func drain(ch <-chan models.VitalReading) []int {
	var out []int
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r.HeartRate)
		default:
			return out
		}
	}
}

func TestEnqueue_DropOldestKeepsNewest(t *testing.T) {
	q := NewSharded(1, 3, DropOldest, zap.NewNop())
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Enqueue(reading("D1", i)))
	}

	assert.Equal(t, []int{3, 4, 5}, drain(q.Shard(0)))
	stats := q.Stats()
	assert.Equal(t, int64(5), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Dropped)
}

func TestEnqueue_DropNewestKeepsOldest(t *testing.T) {
	q := NewSharded(1, 3, DropNewest, zap.NewNop())
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(reading("D1", i)))
	}
	assert.ErrorIs(t, q.Enqueue(reading("D1", 4)), ErrQueueFull)
	assert.ErrorIs(t, q.Enqueue(reading("D1", 5)), ErrQueueFull)

	assert.Equal(t, []int{1, 2, 3}, drain(q.Shard(0)))
	assert.Equal(t, int64(2), q.Stats().Dropped)
}

func TestEnqueue_NeverBlocks(t *testing.T) {
	q := NewSharded(2, 1, DropOldest, zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			_ = q.Enqueue(reading(fmt.Sprintf("D%d", i%7), i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked with no consumer")
	}
	assert.LessOrEqual(t, q.Stats().Depth, 2)
}

func TestShardFor_IsStablePerDevice(t *testing.T) {
	q := NewSharded(8, 16, DropOldest, zap.NewNop())
	for _, id := range []string{"collar-1", "collar-2", "collar-99"} {
		first := q.ShardFor(id)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, q.ShardFor(id))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, q.Len())
	}
}

func TestEnqueue_PreservesPerDeviceOrder(t *testing.T) {
	q := NewSharded(4, 1000, DropOldest, zap.NewNop())
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Enqueue(reading("A", i)))
		require.NoError(t, q.Enqueue(reading("B", i)))
	}

	got := drain(q.Shard(q.ShardFor("A")))
	var a []int
	if q.ShardFor("A") == q.ShardFor("B") {
		for i, v := range got {
			if i%2 == 0 {
				a = append(a, v)
			}
		}
	} else {
		a = got
	}
	for i := range a {
		assert.Equal(t, i, a[i])
	}
}

func TestClose(t *testing.T) {
	q := NewSharded(2, 4, DropOldest, zap.NewNop())
	require.NoError(t, q.Enqueue(reading("D1", 1)))
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(reading("D1", 2)), ErrQueueClosed)

	r, ok := <-q.Shard(q.ShardFor("D1"))
	require.True(t, ok, "queued readings survive Close")
	assert.Equal(t, 1, r.HeartRate)
	_, ok = <-q.Shard(q.ShardFor("D1"))
	assert.False(t, ok)
}

func TestEnqueue_ConcurrentProducersAndConsumers(t *testing.T) {
	q := NewSharded(4, 8, DropOldest, zap.NewNop())

	var received sync.WaitGroup
	counts := make([]int, q.Len())
	for i := 0; i < q.Len(); i++ {
		received.Add(1)
		go func(i int) {
			defer received.Done()
			for range q.Shard(i) {
				counts[i]++
			}
		}(i)
	}

	var produced sync.WaitGroup
	for p := 0; p < 4; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < 500; i++ {
				_ = q.Enqueue(reading(fmt.Sprintf("D%d-%d", p, i%5), i))
			}
		}(p)
	}
	produced.Wait()
	q.Close()
	received.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	stats := q.Stats()
	assert.Equal(t, int64(2000), stats.Enqueued)
	assert.Equal(t, int64(total)+stats.Dropped, stats.Enqueued)
}
