// Package scheduler runs every unordered image pair through a comparer exactly
// once, one reference image (a row) at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"imagedupes/logging"
	"imagedupes/types"
)

// PairComparer evaluates one pair. A nil result with a nil error means no result.
type PairComparer interface {
	Compare(ref, other *types.ImageEntry) (*types.PairResult, error)
}

// Sink receives the reported results of one row, in submission order
type Sink interface {
	WriteRow(results []*types.PairResult) error
}

// Options configures a Scheduler
type Options struct {
	ShowProgress bool
}

// Stats summarises a run
type Stats struct {
	Images        int
	SkippedImages int
	Rows          int
	Compared      int
	Failed        int
	Reported      int
}

// Scheduler fans each row out to a fixed set of workers. Worker w always uses
// comparers[w], so per-worker state is never shared.
type Scheduler struct {
	comparers []PairComparer
	sink      Sink
	opts      Options
}

// New creates a scheduler with one worker per comparer
func New(comparers []PairComparer, sink Sink, opts Options) (*Scheduler, error) {
	if len(comparers) == 0 {
		return nil, errors.New("scheduler needs at least one worker")
	}
	if sink == nil {
		return nil, errors.New("scheduler needs a result sink")
	}
	return &Scheduler{comparers: comparers, sink: sink, opts: opts}, nil
}

// PairCount returns the number of unordered pairs among n images
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// Run compares every valid image with every valid image after it. Rows run
// sequentially; the sink is called from this goroutine only, after each row.
// Cancelling ctx stops the run between rows.
func (s *Scheduler) Run(ctx context.Context, set types.ImageSet) (Stats, error) {
	stats := Stats{Images: len(set)}

	valid := make([]*types.ImageEntry, 0, len(set))
	for _, entry := range set {
		if !entry.Valid() {
			stats.SkippedImages++
			logging.LogWarning("Skipping %s in all comparisons: %v", entry.Title, entry.Err)
			continue
		}
		valid = append(valid, entry)
	}

	progress := NewProgressTracker(PairCount(len(valid)), s.opts.ShowProgress)
	defer progress.Stop()

	for i, ref := range valid {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		others := valid[i+1:]
		if len(others) == 0 {
			continue
		}

		logging.DebugLog("Preparing %s...", ref.Title)
		results, failed := s.runRow(ref, others, progress)

		reported := make([]*types.PairResult, 0, len(results))
		for _, r := range results {
			if r != nil {
				reported = append(reported, r)
			}
		}
		if err := s.sink.WriteRow(reported); err != nil {
			return stats, fmt.Errorf("cannot write results for %s: %w", ref.Title, err)
		}

		stats.Rows++
		stats.Compared += len(others)
		stats.Failed += failed
		stats.Reported += len(reported)
	}

	return stats, nil
}

// runRow compares ref with each of others and returns the results indexed like others
func (s *Scheduler) runRow(ref *types.ImageEntry, others []*types.ImageEntry, progress *ProgressTracker) ([]*types.PairResult, int) {
	results := make([]*types.PairResult, len(others))
	var failed atomic.Int64

	workers := len(s.comparers)
	if len(others) < workers {
		workers = len(others)
	}

	jobs := make(chan int)
	var group errgroup.Group
	for w := 0; w < workers; w++ {
		comparer := s.comparers[w]
		group.Go(func() error {
			for k := range jobs {
				result, err := safeCompare(comparer, ref, others[k])
				if err != nil {
					failed.Add(1)
					logging.LogPairSkipped(ref.Title, others[k].Title, err)
					progress.Record(false)
					continue
				}
				results[k] = result
				progress.Record(true)
			}
			return nil
		})
	}

	for k := range others {
		jobs <- k
	}
	close(jobs)
	_ = group.Wait()

	return results, int(failed.Load())
}

// safeCompare turns a panic inside a comparison into an error for that pair
func safeCompare(comparer PairComparer, ref, other *types.ImageEntry) (result *types.PairResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic during comparison: %v\n%s", r, debug.Stack())
		}
	}()
	return comparer.Compare(ref, other)
}
