package scheduler

import (
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker counts finished comparisons and optionally draws a progress bar
type ProgressTracker struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	compared int
	failed   int
}

// NewProgressTracker creates a tracker for total comparisons
func NewProgressTracker(total int, show bool) *ProgressTracker {
	tracker := &ProgressTracker{}
	if show && total > 0 {
		tracker.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Comparing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	return tracker
}

// Record registers one finished comparison
func (p *ProgressTracker) Record(ok bool) {
	p.mu.Lock()
	p.compared++
	if !ok {
		p.failed++
	}
	p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Counts returns the comparisons recorded so far and how many of them failed
func (p *ProgressTracker) Counts() (compared, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compared, p.failed
}

// Stop ends the progress display
func (p *ProgressTracker) Stop() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
