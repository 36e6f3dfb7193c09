// Package queue holds decoded readings between ingestion and the workers.
package queue

import (
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"vitalpaw-monitor/internal/models"
)

// Drop policies applied when a shard is full.
const (
	DropOldest = "drop-oldest" // evict the oldest queued reading, accept the new one
	DropNewest = "drop-newest" // reject the new reading
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// Stats are cumulative queue counters plus the current depth.
type Stats struct {
	Enqueued int64
	Dropped  int64
	Depth    int
}

type shard struct {
	mu     sync.Mutex
	ch     chan models.VitalReading
	closed bool
}

// Sharded is a set of bounded FIFO shards. A device always maps to the same
// shard, so one consumer per shard sees each device's readings in order.
// Enqueue never blocks.
type Sharded struct {
	shards []*shard
	policy string
	logger *zap.Logger

	enqueued atomic.Int64
	dropped  atomic.Int64
}

// NewSharded creates n shards of the given capacity. Unknown policies fall
// back to DropOldest.
func NewSharded(n, capacity int, policy string, logger *zap.Logger) *Sharded {
	if n <= 0 {
		n = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	if policy != DropNewest {
		policy = DropOldest
	}

	q := &Sharded{
		shards: make([]*shard, n),
		policy: policy,
		logger: logger,
	}
	for i := range q.shards {
		q.shards[i] = &shard{ch: make(chan models.VitalReading, capacity)}
	}
	return q
}

// Enqueue places r on its device's shard.
func (q *Sharded) Enqueue(r models.VitalReading) error {
	s := q.shards[q.ShardFor(r.DeviceID)]
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrQueueClosed
	}

	select {
	case s.ch <- r:
		q.enqueued.Add(1)
		return nil
	default:
	}

	if q.policy == DropNewest {
		q.dropped.Add(1)
		q.logger.Debug("Queue full, dropping new reading", zap.String("device_id", r.DeviceID))
		return ErrQueueFull
	}

	select {
	case old := <-s.ch:
		q.dropped.Add(1)
		q.logger.Debug("Queue full, dropping oldest reading",
			zap.String("device_id", old.DeviceID),
			zap.Time("observed_at", old.ObservedAt))
	default:
	}
	// producers hold s.mu and consumers only remove, so there is room now
	s.ch <- r
	q.enqueued.Add(1)
	return nil
}

// ShardFor returns the shard index for deviceID.
func (q *Sharded) ShardFor(deviceID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(deviceID))
	return int(h.Sum32() % uint32(len(q.shards)))
}

// Shard returns the receive side of shard i. It is closed by Close.
func (q *Sharded) Shard(i int) <-chan models.VitalReading {
	return q.shards[i].ch
}

// Len returns the number of shards.
func (q *Sharded) Len() int { return len(q.shards) }

// Close stops accepting readings. Already queued readings stay receivable.
func (q *Sharded) Close() {
	for _, s := range q.shards {
		s.mu.Lock()
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
		s.mu.Unlock()
	}
}

// Stats returns the counters.
func (q *Sharded) Stats() Stats {
	depth := 0
	for _, s := range q.shards {
		depth += len(s.ch)
	}
	return Stats{
		Enqueued: q.enqueued.Load(),
		Dropped:  q.dropped.Load(),
		Depth:    depth,
	}
}
