package telemetry

import (
	"sync"
	"time"
)

// ReadingTracker measures how long a post stays open. A session starts
// on view entry and ends with a single terminal report when the view
// closes or another post is opened. A session that never finishes is
// simply lost.
type ReadingTracker struct {
	now      func() time.Time
	progress func(postID int64, percent float64, section string) error
	finish   func(postID int64, duration time.Duration) error

	mu       sync.Mutex
	openPost int64
	started  time.Time
	lastPct  float64
}

func NewReadingTracker(
	progress func(postID int64, percent float64, section string) error,
	finish func(postID int64, duration time.Duration) error,
) *ReadingTracker {
	return &ReadingTracker{now: time.Now, progress: progress, finish: finish}
}

// SetClock replaces the time source, used by tests.
func (r *ReadingTracker) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Start opens a session for postID. An already-open session for another
// post is finished first; starting the same post again keeps the
// original start time.
func (r *ReadingTracker) Start(postID int64) {
	r.mu.Lock()
	if r.openPost == postID {
		r.mu.Unlock()
		return
	}
	prev, prevStart := r.openPost, r.started
	r.openPost = postID
	r.started = r.now()
	r.lastPct = 0
	duration := time.Duration(0)
	if prev != 0 {
		duration = r.started.Sub(prevStart)
	}
	r.mu.Unlock()

	if prev != 0 {
		_ = r.finish(prev, duration)
	}
}

// Progress reports coarse scroll position. Callers throttle; the
// tracker only refuses reports for posts that are not open.
func (r *ReadingTracker) Progress(postID int64, percent float64, section string) {
	r.mu.Lock()
	if r.openPost != postID {
		r.mu.Unlock()
		return
	}
	if percent > r.lastPct {
		r.lastPct = percent
	}
	r.mu.Unlock()

	_ = r.progress(postID, percent, section)
}

// Finish closes the session and sends its one terminal report. No-op
// when the post has no open session.
func (r *ReadingTracker) Finish(postID int64) {
	r.mu.Lock()
	if r.openPost != postID {
		r.mu.Unlock()
		return
	}
	duration := r.now().Sub(r.started)
	r.openPost = 0
	r.lastPct = 0
	r.mu.Unlock()

	_ = r.finish(postID, duration)
}

// LastPercent returns the furthest scroll position of the open session.
func (r *ReadingTracker) LastPercent(postID int64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openPost != postID {
		return 0
	}
	return r.lastPct
}
