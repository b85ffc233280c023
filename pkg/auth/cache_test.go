package auth

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (tc *testClock) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

func (tc *testClock) Advance(d time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = tc.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *testClock) {
	t.Helper()
	c, err := NewCache(128, ttl)
	require.NoError(t, err)

	clock := &testClock{now: time.Unix(1000, 0)}
	c.now = clock.Now
	c.lastSweep.Store(clock.Now().UnixNano())
	return c, clock
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	prev, had := c.Put("alice", []string{"reader"})
	assert.False(t, had)
	assert.Nil(t, prev)

	roles, ok := c.Get("alice")
	require.True(t, ok)
	assert.Equal(t, []string{"reader"}, roles)
}

func TestCacheExpiryEvictsOnRead(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Put("alice", []string{"reader"})
	clock.Advance(time.Minute)

	_, ok := c.Get("alice")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCachePutReturnsPreviousUnlessExpired(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Put("alice", []string{"reader"})
	prev, had := c.Put("alice", []string{"editor"})
	require.True(t, had)
	assert.Equal(t, []string{"reader"}, prev)

	clock.Advance(time.Minute)
	prev, had = c.Put("alice", []string{"admin"})
	assert.False(t, had)
	assert.Nil(t, prev)
}

func TestCacheSweepRemovesExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	c.Put("alice", []string{"reader"})
	c.Put("bob", []string{"editor"})
	clock.Advance(time.Minute)
	c.Put("carol", []string{"admin"})

	// The put above is more than 5% of the TTL after the last sweep, so an
	// asynchronous sweep was started.
	assert.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	roles, ok := c.Get("carol")
	require.True(t, ok)
	assert.Equal(t, []string{"admin"}, roles)
}

func TestCacheGetOrLoadCollapsesConcurrentFills(t *testing.T) {
	c, err := NewCache(128, time.Minute)
	require.NoError(t, err)

	var mu sync.Mutex
	fills := 0
	gate := make(chan struct{})

	fill := func() ([]string, error) {
		mu.Lock()
		fills++
		mu.Unlock()
		<-gate
		return []string{"reader"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roles, _, err := c.GetOrLoad("alice", fill)
			assert.NoError(t, err)
			assert.Equal(t, []string{"reader"}, roles)
		}()
	}

	// Let the in-flight fill finish once all goroutines have piled up.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fills)
}

func TestCacheGetOrLoadReportsHitFromCollapsedFill(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	// Stand-in for an in-flight load whose double-check found the entry.
	gate := make(chan struct{})
	entered := make(chan struct{})
	go c.group.Do("alice", func() (any, error) {
		close(entered)
		<-gate
		return loadResult{roles: []string{"reader"}, hit: true}, nil
	})
	<-entered

	done := make(chan struct{})
	var (
		roles []string
		hit   bool
		err   error
	)
	go func() {
		defer close(done)
		roles, hit, err = c.GetOrLoad("alice", func() ([]string, error) {
			return nil, errors.New("fill must not run")
		})
	}()

	// Let the collapsed caller join the flight before it finishes.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	<-done

	require.NoError(t, err)
	assert.Equal(t, []string{"reader"}, roles)
	assert.True(t, hit, "a call answered from the cache inside the flight is a hit")
}

func TestCacheGetOrLoadPropagatesFillError(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	boom := errors.New("backend down")
	_, _, err := c.GetOrLoad("alice", func() ([]string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get("alice")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	c.Put("alice", []string{"reader"})
	c.Put("bob", []string{"editor"})
	c.Clear()
	assert.Zero(t, c.Len())
}
