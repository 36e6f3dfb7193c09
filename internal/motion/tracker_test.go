package motion

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalpaw-monitor/internal/models"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func mag(m float64) models.Accel { return models.Accel{X: m} }

// tick returns the timestamp of sample i at 10 Hz.
func tick(i int) time.Time { return t0.Add(time.Duration(i) * 100 * time.Millisecond) }

func smallConfig(window int) Config {
	cfg := DefaultConfig()
	cfg.WindowSize = window
	return cfg
}

func TestUpdate_ImmobilityFiresOnceAtFullWindow(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	immobile := 0
	for i := 1; i <= 3000; i++ {
		class := tr.Update("D1", mag(0.2), tick(i))
		if class == models.MotionImmobile {
			immobile++
			assert.Equal(t, 3000, i, "immobility must fire on the sample that fills the window")
		}
	}
	assert.Equal(t, 1, immobile)

	snap, ok := tr.Snapshot("D1")
	require.True(t, ok)
	assert.Equal(t, ImmobilityCooldown, snap.Phase)
	assert.Equal(t, 0, snap.Samples)

	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(0.2), tick(3001)))
	snap, _ = tr.Snapshot("D1")
	assert.Equal(t, Tracking, snap.Phase)
	assert.Equal(t, 1, snap.Samples)
}

func TestUpdate_ImmobilityNeedsAFreshWindow(t *testing.T) {
	tr := NewTracker(smallConfig(10))

	var fired []int
	for i := 1; i <= 35; i++ {
		if tr.Update("D1", mag(0.1), tick(i)) == models.MotionImmobile {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{10, 20, 30}, fired)
}

func TestUpdate_ActiveSampleBlocksImmobilityUntilEvicted(t *testing.T) {
	tr := NewTracker(smallConfig(5))

	samples := []float64{0.2, 0.2, 2.0, 0.2, 0.2, 0.2, 0.2, 0.2}
	var classes []models.MotionClass
	for i, m := range samples {
		classes = append(classes, tr.Update("D1", mag(m), tick(i)))
	}
	want := []models.MotionClass{
		models.MotionNormal, models.MotionNormal, models.MotionNormal, models.MotionNormal,
		models.MotionNormal, models.MotionNormal, models.MotionNormal, models.MotionImmobile,
	}
	assert.Equal(t, want, classes)
}

func TestUpdate_FallIsEdgeTriggered(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(0.1), tick(0)))
	assert.Equal(t, models.MotionFall, tr.Update("D1", mag(25.0), tick(1)))
	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(25.0), tick(2)))

	snap, _ := tr.Snapshot("D1")
	assert.Equal(t, tick(1), snap.LastFallAlertAt)
	assert.Equal(t, 25.0, snap.LastMagnitude)
}

func TestUpdate_FallUsesAxisMagnitude(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Update("D1", models.Accel{X: 1, Y: 1, Z: 1}, tick(0))
	assert.Equal(t, models.MotionFall, tr.Update("D1", models.Accel{X: 12, Y: 12, Z: 12}, tick(1)))
}

func TestUpdate_FallNeedsQuiescentPredecessor(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Update("D1", mag(6.0), tick(0))
	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(25.0), tick(1)))

	tr.Update("D1", mag(4.9), tick(2))
	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(20.0), tick(3)), "threshold is exclusive")
	tr.Update("D1", mag(4.9), tick(4))
	assert.Equal(t, models.MotionFall, tr.Update("D1", mag(20.1), tick(5)))
}

func TestUpdate_FirstSampleNeverFalls(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(30.0), tick(0)))
	snap, ok := tr.Snapshot("D1")
	require.True(t, ok)
	assert.Equal(t, Tracking, snap.Phase)
	assert.True(t, snap.LastFallAlertAt.IsZero())
}

func TestUpdate_IdleGapResetsHistory(t *testing.T) {
	tr := NewTracker(smallConfig(10))

	for i := 0; i < 9; i++ {
		tr.Update("D1", mag(0.1), tick(i))
	}
	later := tick(9).Add(6 * time.Minute)
	assert.Equal(t, models.MotionNormal, tr.Update("D1", mag(0.1), later), "stale window must not complete")

	snap, _ := tr.Snapshot("D1")
	assert.Equal(t, 1, snap.Samples)

	// a quiet sample followed by a spike across a gap is not a fall either
	tr.Update("D2", mag(0.1), t0)
	assert.Equal(t, models.MotionNormal, tr.Update("D2", mag(25.0), t0.Add(10*time.Minute)))
}

func TestUpdate_DevicesAreIndependent(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Update("D1", mag(0.1), tick(0))
	tr.Update("D2", mag(10.0), tick(0))
	assert.Equal(t, models.MotionFall, tr.Update("D1", mag(25.0), tick(1)))
	assert.Equal(t, models.MotionNormal, tr.Update("D2", mag(25.0), tick(1)))
	assert.Equal(t, 2, tr.Len())
}

func TestUpdate_ConcurrentSameDeviceIsSerialized(t *testing.T) {
	tr := NewTracker(smallConfig(100000))

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.Update("D1", mag(0.5), tick(g*100+i))
				tr.Update(fmt.Sprintf("other-%d", g), mag(0.5), tick(i))
			}
		}(g)
	}
	wg.Wait()

	snap, ok := tr.Snapshot("D1")
	require.True(t, ok)
	assert.Equal(t, 1000, snap.Samples)
	assert.Equal(t, 11, tr.Len())
}

func TestEvictIdleAndForget(t *testing.T) {
	now := t0
	tr := NewTracker(DefaultConfig())
	tr.now = func() time.Time { return now }

	tr.Update("old", mag(0.1), now)
	now = now.Add(4 * time.Minute)
	tr.Update("fresh", mag(0.1), now)
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, tr.EvictIdle())
	_, ok := tr.Snapshot("old")
	assert.False(t, ok)

	tr.Forget("fresh")
	assert.Equal(t, 0, tr.Len())

	assert.Equal(t, models.MotionNormal, tr.Update("fresh", mag(25.0), now), "forgotten device starts over")
}
