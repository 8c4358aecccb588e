package gps

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"potholeserver/internal/model"
)

func fixAt(ts int64) model.GpsFix {
	return model.GpsFix{Timestamp: ts, Latitude: float64(ts), Longitude: -float64(ts)}
}

func TestCache_RecordReturnsSize(t *testing.T) {
	c := NewCache(3, 0)

	assert.Equal(t, 1, c.Record("s1", fixAt(1)))
	assert.Equal(t, 2, c.Record("s1", fixAt(2)))
	assert.Equal(t, 3, c.Record("s1", fixAt(3)))
	assert.Equal(t, 3, c.Record("s1", fixAt(4)))
	assert.Equal(t, 1, c.Record("s2", fixAt(9)))
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := NewCache(5, 0)

	for i := int64(0); i < 12; i++ {
		c.Record("s1", fixAt(i))
		assert.LessOrEqual(t, c.Len("s1"), 5)
	}

	snap := c.Snapshot("s1")
	require.Len(t, snap, 5)
	for i, fix := range snap {
		assert.Equal(t, int64(7+i), fix.Timestamp)
	}
}

func TestCache_EvictionIgnoresTimestampOrder(t *testing.T) {
	c := NewCache(3, 0)

	// Arrival order differs from timestamp order.
	for _, ts := range []int64{50, 10, 40, 20, 30} {
		c.Record("s1", fixAt(ts))
	}

	snap := c.Snapshot("s1")
	got := make([]int64, 0, len(snap))
	for _, fix := range snap {
		got = append(got, fix.Timestamp)
	}
	assert.Equal(t, []int64{40, 20, 30}, got)
}

func TestCache_SnapshotIsCopy(t *testing.T) {
	c := NewCache(10, 0)
	c.Record("s1", fixAt(1))

	snap := c.Snapshot("s1")
	snap[0].Latitude = 999

	fresh := c.Snapshot("s1")
	require.Len(t, fresh, 1)
	assert.Equal(t, 1.0, fresh[0].Latitude)
}

func TestCache_SnapshotUnknownSession(t *testing.T) {
	c := NewCache(10, 0)

	snap := c.Snapshot("missing")
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
	assert.Equal(t, 0, c.Len("missing"))
}

func TestCache_DefaultSize(t *testing.T) {
	c := NewCache(0, 0)
	assert.Equal(t, DefaultMaxCacheSize, c.maxSize)
}

func TestCache_ConcurrentRecordSameSession(t *testing.T) {
	const writers = 64
	c := NewCache(1000, 0)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			c.Record("shared", fixAt(ts))
		}(int64(i))
	}
	wg.Wait()

	snap := c.Snapshot("shared")
	require.Len(t, snap, writers)

	seen := make(map[int64]bool, writers)
	for _, fix := range snap {
		assert.False(t, seen[fix.Timestamp], "duplicate fix %d", fix.Timestamp)
		seen[fix.Timestamp] = true
	}
}

func TestCache_ConcurrentRecordBoundedByCap(t *testing.T) {
	c := NewCache(10, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			c.Record("shared", fixAt(ts))
			c.Snapshot("shared")
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 10, c.Len("shared"))
}

func TestCache_ConcurrentSessions(t *testing.T) {
	c := NewCache(100, 0)

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for i := int64(0); i < 50; i++ {
				c.Record(session, fixAt(i))
			}
		}(fmt.Sprintf("s%d", s))
	}
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, 8, stats.Sessions)
	assert.Equal(t, 400, stats.Points)
}

func TestCache_ExpireDisabled(t *testing.T) {
	c := NewCache(10, 0)
	c.Record("s1", fixAt(1))

	assert.Equal(t, 0, c.Expire())
	assert.Equal(t, 1, c.Len("s1"))
}

func TestCache_ExpireIdleSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Record("old", fixAt(1))
	now = now.Add(2 * time.Minute)
	c.Record("fresh", fixAt(2))

	assert.Equal(t, 1, c.Expire())
	assert.Empty(t, c.Snapshot("old"))
	assert.Len(t, c.Snapshot("fresh"), 1)

	// An expired session is recreated lazily.
	assert.Equal(t, 1, c.Record("old", fixAt(3)))
}

func TestCache_RecordAfterExpireIsNotLost(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Record("s1", fixAt(1))
	stale := c.get("s1")
	now = now.Add(time.Hour)
	require.Equal(t, 1, c.Expire())
	assert.True(t, stale.removed)

	c.Record("s1", fixAt(2))
	snap := c.Snapshot("s1")
	require.Len(t, snap, 1)
	assert.Equal(t, int64(2), snap[0].Timestamp)
}

func TestCache_RunJanitorStopsOnCancel(t *testing.T) {
	c := NewCache(10, time.Nanosecond)
	c.Record("s1", fixAt(1))

	ctx, cancel := context.WithCancel(context.Background())
	expired := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, time.Millisecond, func(n int) {
			select {
			case expired <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-expired:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never expired the idle session")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
