package opensky

import (
	"sync"
	"time"
)

// Daily credit allowances published by OpenSky.
const (
	AnonymousDailyLimit         = 400
	AuthenticatedDailyLimit     = 4000
	ActiveContributorDailyLimit = 8000
)

// RateLimitTracker remembers the most recent quota information seen from
// the API. One tracker is shared by every client in the process.
type RateLimitTracker struct {
	mu            sync.RWMutex
	remaining     int
	retryAfter    time.Duration
	lastUpdated   time.Time
	authenticated bool
	now           func() time.Time
}

// RateLimitStatus is a point-in-time copy of the tracker.
type RateLimitStatus struct {
	Remaining         *int       `json:"remaining"`
	RetryAfterSeconds *int       `json:"retryAfterSeconds"`
	LastUpdated       *time.Time `json:"lastUpdated"`
	Authenticated     bool       `json:"authenticated"`
}

// NewRateLimitTracker creates an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{remaining: -1, now: time.Now}
}

// SetAuthenticated records whether requests carry OAuth2 credentials.
func (t *RateLimitTracker) SetAuthenticated(authenticated bool) {
	t.mu.Lock()
	t.authenticated = authenticated
	t.mu.Unlock()
}

// Observe updates the tracker from a response's quota headers.
// A non-zero retryAfter is recorded as a pending back-off.
func (t *RateLimitTracker) Observe(h RateLimitHeaders, retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h.Remaining >= 0 {
		t.remaining = h.Remaining
	}
	t.retryAfter = retryAfter
	t.lastUpdated = t.now().UTC()
}

// Snapshot returns the current state. Unknown values are nil.
func (t *RateLimitTracker) Snapshot() RateLimitStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := RateLimitStatus{Authenticated: t.authenticated}
	if t.remaining >= 0 {
		remaining := t.remaining
		status.Remaining = &remaining
	}
	if !t.lastUpdated.IsZero() {
		updated := t.lastUpdated
		status.LastUpdated = &updated

		// Only report what is left of the back-off window
		if t.retryAfter > 0 {
			left := t.retryAfter - t.now().Sub(t.lastUpdated)
			if left > 0 {
				seconds := int((left + time.Second - 1) / time.Second)
				status.RetryAfterSeconds = &seconds
			}
		}
	}
	return status
}
