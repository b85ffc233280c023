package realm

import (
	"sync"
	"time"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

// DefaultMaxFailedAttempts is the number of consecutive failures after which
// authentication is rate limited.
const DefaultMaxFailedAttempts = 3

// DefaultLockDuration is how long a principal stays rate limited after
// exceeding the failure budget.
const DefaultLockDuration = 5 * time.Second

// RateLimitedStrategy throttles repeated authentication failures per
// principal. After maxFailed consecutive failures, further attempts within
// lockDuration short-circuit to security.ErrTooManyAttempts without touching
// credentials. A successful authentication resets the counter.
type RateLimitedStrategy struct {
	maxFailed    int
	lockDuration time.Duration
	now          func() time.Time

	mu    sync.Mutex
	state map[string]*attemptState
}

type attemptState struct {
	failures    int
	lastFailure time.Time
}

// NewRateLimitedStrategy creates a strategy; non-positive arguments fall
// back to the defaults.
func NewRateLimitedStrategy(maxFailed int, lockDuration time.Duration) *RateLimitedStrategy {
	if maxFailed <= 0 {
		maxFailed = DefaultMaxFailedAttempts
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &RateLimitedStrategy{
		maxFailed:    maxFailed,
		lockDuration: lockDuration,
		now:          time.Now,
		state:        make(map[string]*attemptState),
	}
}

// Assert returns security.ErrTooManyAttempts while the principal is locked
// out. An expired lock window resets the failure counter.
func (s *RateLimitedStrategy) Assert(principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[principal]
	if !ok || st.failures < s.maxFailed {
		return nil
	}
	if s.now().Sub(st.lastFailure) >= s.lockDuration {
		delete(s.state, principal)
		return nil
	}
	return security.ErrTooManyAttempts
}

// RecordFailure counts a failed credential check.
func (s *RateLimitedStrategy) RecordFailure(principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[principal]
	if !ok {
		st = &attemptState{}
		s.state[principal] = st
	}
	st.failures++
	st.lastFailure = s.now()
}

// RecordSuccess clears the failure counter.
func (s *RateLimitedStrategy) RecordSuccess(principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, principal)
}
