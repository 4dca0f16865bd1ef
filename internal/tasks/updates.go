package tasks

import (
	"fmt"

	"github.com/desertthunder/plexaa/internal/browse"
)

// ProgressUpdate represents a progress event during playback preparation or prefetching.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Prepare Phase = iota
	Resume
	Prefetch
	Evict
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case Resume:
		return "resume"
	case Prefetch:
		return "prefetch"
	case Evict:
		return "evict"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func preparedUpdate(q *browse.Queue) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prepare,
		Step:    q.Start + 1,
		Total:   len(q.Items),
		Message: fmt.Sprintf("Playing %s (%d/%d)", q.Current().Title, q.Start+1, len(q.Items)),
		Data:    q,
	}
}

func resumeUpdate(mediaID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resume,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resuming %s", mediaID),
	}
}

func prefetchedUpdate(step, total int, it browse.Item) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prefetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ cached %s", step, total, it.Title),
		Data:    it.ID,
	}
}

func prefetchFailedUpdate(step, total int, it browse.Item, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prefetch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, it.Title, err),
		Data:    it.ID,
	}
}

func evictedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Evict,
		Step:    count,
		Total:   count,
		Message: fmt.Sprintf("Evicted %d cached tracks", count),
	}
}
