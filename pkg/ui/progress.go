package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker follows how many players an ingest run has handled
type StatusTracker struct {
	Total     int
	Done      int
	Failed    int
	StartTime time.Time
}

// NewStatusTracker starts tracking a run over total players
func NewStatusTracker(total int) *StatusTracker {
	return &StatusTracker{Total: total, StartTime: time.Now()}
}

// Record notes that done of total players have finished, the last one
// successfully or not
func (st *StatusTracker) Record(done, total int, ok bool) {
	st.Done = done
	st.Total = total
	if !ok {
		st.Failed++
	}
}

// Bar renders done/total as a fixed-width bar
func Bar(done, total, width int) string {
	if width < 1 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, done, total)
}

// Progress returns the tracker's bar
func (st *StatusTracker) Progress() string {
	return Bar(st.Done, st.Total, 20)
}

// Elapsed is the time since tracking started
func (st *StatusTracker) Elapsed() time.Duration {
	return time.Since(st.StartTime)
}

// Rate is players handled per minute
func (st *StatusTracker) Rate() float64 {
	elapsed := st.Elapsed().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Done) / elapsed
}

// PrintProgress redraws the progress line in place
func (st *StatusTracker) PrintProgress() {
	fmt.Fprintf(Output, "\r%s %s failed: %d", Green("[INGEST]"), st.Progress(), st.Failed)
}
