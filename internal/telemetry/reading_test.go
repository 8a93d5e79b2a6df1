package telemetry

import (
	"testing"
	"time"
)

type readingRecorder struct {
	progress []float64
	finished map[int64]time.Duration
}

func newReadingRecorder() *readingRecorder {
	return &readingRecorder{finished: map[int64]time.Duration{}}
}

func (r *readingRecorder) onProgress(postID int64, percent float64, section string) error {
	r.progress = append(r.progress, percent)
	return nil
}

func (r *readingRecorder) onFinish(postID int64, duration time.Duration) error {
	r.finished[postID] = duration
	return nil
}

func TestReadingSessionDuration(t *testing.T) {
	rec := newReadingRecorder()
	tracker := NewReadingTracker(rec.onProgress, rec.onFinish)

	current := time.Unix(1000, 0)
	tracker.SetClock(func() time.Time { return current })

	tracker.Start(42)
	current = current.Add(5 * time.Second)
	tracker.Finish(42)

	if got := rec.finished[42]; got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
}

func TestFinishWithoutStartIsNoOp(t *testing.T) {
	rec := newReadingRecorder()
	tracker := NewReadingTracker(rec.onProgress, rec.onFinish)
	tracker.Finish(1)
	if len(rec.finished) != 0 {
		t.Fatalf("unexpected finish report")
	}
}

func TestStartingAnotherPostFinalizesPrevious(t *testing.T) {
	rec := newReadingRecorder()
	tracker := NewReadingTracker(rec.onProgress, rec.onFinish)

	current := time.Unix(0, 0)
	tracker.SetClock(func() time.Time { return current })

	tracker.Start(1)
	current = current.Add(3 * time.Second)
	tracker.Start(2)

	if got := rec.finished[1]; got != 3*time.Second {
		t.Fatalf("expected first session closed at 3s, got %v", got)
	}

	current = current.Add(2 * time.Second)
	tracker.Finish(2)
	if got := rec.finished[2]; got != 2*time.Second {
		t.Fatalf("expected second session of 2s, got %v", got)
	}
}

func TestRepeatedStartKeepsOriginalClock(t *testing.T) {
	rec := newReadingRecorder()
	tracker := NewReadingTracker(rec.onProgress, rec.onFinish)

	current := time.Unix(0, 0)
	tracker.SetClock(func() time.Time { return current })

	tracker.Start(7)
	current = current.Add(time.Second)
	tracker.Start(7)
	current = current.Add(time.Second)
	tracker.Finish(7)

	if got := rec.finished[7]; got != 2*time.Second {
		t.Fatalf("expected 2s from the original start, got %v", got)
	}
}

func TestProgressIgnoredForClosedSession(t *testing.T) {
	rec := newReadingRecorder()
	tracker := NewReadingTracker(rec.onProgress, rec.onFinish)

	tracker.Progress(9, 0.5, "intro")
	if len(rec.progress) != 0 {
		t.Fatalf("progress for an unopened post must be dropped")
	}

	tracker.Start(9)
	tracker.Progress(9, 0.25, "intro")
	tracker.Progress(9, 0.75, "body")
	if tracker.LastPercent(9) != 0.75 {
		t.Fatalf("expected furthest position 0.75, got %v", tracker.LastPercent(9))
	}
	if len(rec.progress) != 2 {
		t.Fatalf("expected 2 progress reports, got %d", len(rec.progress))
	}
}
