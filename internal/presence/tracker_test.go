package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(clock.Now), clock
}

func TestTouchExpiresAfterTTL(t *testing.T) {
	tr, clock := newTracker()
	ttl := 5 * time.Second

	assert.True(t, tr.Touch("d1", "bob@x.com", ttl))

	clock.Advance(ttl - time.Millisecond)
	assert.Equal(t, []string{"bob@x.com"}, tr.Snapshot("d1"), "present before ttl elapses")

	clock.Advance(time.Millisecond)
	assert.Empty(t, tr.Snapshot("d1"), "absent once ttl has elapsed, even before a sweep")
}

func TestRepeatedTouchesCollapseAndExtend(t *testing.T) {
	tr, clock := newTracker()
	ttl := 5 * time.Second

	assert.True(t, tr.Touch("d1", "bob@x.com", ttl))
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		assert.False(t, tr.Touch("d1", "bob@x.com", ttl), "refresh does not change the visible set")
	}
	assert.Equal(t, 1, tr.Len(), "one entry per user, not per keystroke")

	clock.Advance(4 * time.Second)
	assert.Equal(t, []string{"bob@x.com"}, tr.Snapshot("d1"))
}

func TestTouchAfterExpiryReportsChange(t *testing.T) {
	tr, clock := newTracker()
	tr.Touch("d1", "bob@x.com", time.Second)
	clock.Advance(2 * time.Second)

	assert.True(t, tr.Touch("d1", "bob@x.com", time.Second), "expired but unswept entry counts as absent")
}

func TestSweepReturnsChangedDocuments(t *testing.T) {
	tr, clock := newTracker()
	tr.Touch("d1", "bob@x.com", time.Second)
	tr.Touch("d1", "carol@x.com", 3*time.Second)
	tr.Touch("d2", "bob@x.com", time.Second)

	assert.Empty(t, tr.Sweep())

	clock.Advance(time.Second)
	assert.ElementsMatch(t, []string{"d1", "d2"}, tr.Sweep())
	assert.Equal(t, []string{"carol@x.com"}, tr.Snapshot("d1"))
	assert.Empty(t, tr.Snapshot("d2"))
	assert.Equal(t, 1, tr.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"d1"}, tr.Sweep())
	assert.Equal(t, 0, tr.Len())
}

func TestClear(t *testing.T) {
	tr, _ := newTracker()
	tr.Touch("d1", "bob@x.com", time.Second)

	assert.True(t, tr.Clear("d1", "bob@x.com"))
	assert.False(t, tr.Clear("d1", "bob@x.com"))
	assert.Empty(t, tr.Snapshot("d1"))
	assert.Empty(t, tr.Sweep())
}

func TestClearExpiredUnsweptEntryReportsChange(t *testing.T) {
	tr, clock := newTracker()
	tr.Touch("d1", "bob@x.com", time.Second)
	clock.Advance(2 * time.Second)

	assert.True(t, tr.Clear("d1", "bob@x.com"), "the sweep will no longer see this entry")
	assert.Empty(t, tr.Sweep())
	assert.Equal(t, 0, tr.Len())
}

func TestSnapshotIsSorted(t *testing.T) {
	tr, _ := newTracker()
	for _, email := range []string{"zed@x.com", "amy@x.com", "kim@x.com"} {
		tr.Touch("d1", email, time.Minute)
	}
	assert.Equal(t, []string{"amy@x.com", "kim@x.com", "zed@x.com"}, tr.Snapshot("d1"))
}
