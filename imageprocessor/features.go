package imageprocessor

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
	"gocv.io/x/gocv"

	"imagedupes/logging"
	"imagedupes/types"
)

// SIFTExtractorName identifies descriptors produced by SIFTExtractor in the cache
const SIFTExtractorName = "sift"

// FeatureExtractor computes the descriptor set of one image.
// Implementations are not safe for concurrent use; give each worker its own.
type FeatureExtractor interface {
	Name() string
	Extract(img gocv.Mat) (*types.DescriptorSet, error)
	Close() error
}

// SIFTExtractor extracts SIFT keypoints and 128 float descriptors
type SIFTExtractor struct {
	sift gocv.SIFT
}

// NewSIFTExtractor creates an extractor owning its own OpenCV SIFT handle
func NewSIFTExtractor() *SIFTExtractor {
	return &SIFTExtractor{sift: gocv.NewSIFT()}
}

// Name returns the cache identifier of this extractor
func (e *SIFTExtractor) Name() string {
	return SIFTExtractorName
}

// Extract detects keypoints and computes their descriptors. An image without
// keypoints yields an empty set, not an error.
func (e *SIFTExtractor) Extract(img gocv.Mat) (*types.DescriptorSet, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot extract features from empty image")
	}

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := e.sift.DetectAndCompute(img, mask)
	if len(keypoints) == 0 || descriptors.Empty() {
		descriptors.Close()
		return &types.DescriptorSet{Descriptors: gocv.NewMat()}, nil
	}
	if descriptors.Rows() != len(keypoints) {
		descriptors.Close()
		return nil, fmt.Errorf("descriptor rows (%d) do not match keypoints (%d)", descriptors.Rows(), len(keypoints))
	}

	return &types.DescriptorSet{Keypoints: keypoints, Descriptors: descriptors}, nil
}

// Close releases the SIFT handle
func (e *SIFTExtractor) Close() error {
	return e.sift.Close()
}

// DescriptorCache persists descriptor sets between runs
type DescriptorCache interface {
	Load(path string) (*types.DescriptorSet, bool, error)
	Store(path string, set *types.DescriptorSet) error
}

// ArenaOptions configures BuildFeatureArena
type ArenaOptions struct {
	Workers      int
	NewExtractor func() FeatureExtractor
	Cache        DescriptorCache // optional
	OnImageDone  func()          // optional, called once per valid image
}

// FeatureArena holds one descriptor set per ImageSet entry, indexed like the set.
// It is read-only once built and safe to share between goroutines.
type FeatureArena struct {
	sets []*types.DescriptorSet
	errs []error
}

// BuildFeatureArena extracts the descriptor set of every valid image exactly once.
// Each worker owns its extractor. A failed extraction is recorded for that
// image and does not stop the others.
func BuildFeatureArena(ctx context.Context, set types.ImageSet, opts ArenaOptions) (*FeatureArena, error) {
	if opts.NewExtractor == nil {
		opts.NewExtractor = func() FeatureExtractor { return NewSIFTExtractor() }
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	arena := &FeatureArena{
		sets: make([]*types.DescriptorSet, len(set)),
		errs: make([]error, len(set)),
	}

	jobs := make(chan int)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(jobs)
		for i, entry := range set {
			if !entry.Valid() {
				arena.errs[i] = fmt.Errorf("image %s was not loaded", entry.Title)
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- i:
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		group.Go(func() error {
			extractor := opts.NewExtractor()
			defer extractor.Close()

			for i := range jobs {
				arena.sets[i], arena.errs[i] = extractEntry(extractor, set[i], opts.Cache)
				if arena.errs[i] != nil {
					logging.LogWarning("Feature extraction failed for %s: %v", set[i].Title, arena.errs[i])
				}
				if opts.OnImageDone != nil {
					opts.OnImageDone()
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		arena.Close()
		return nil, err
	}
	return arena, nil
}

// extractEntry returns the cached descriptor set of an entry or computes and stores it
func extractEntry(extractor FeatureExtractor, entry *types.ImageEntry, cache DescriptorCache) (set *types.DescriptorSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = fmt.Errorf("panic during feature extraction: %v\n%s", r, debug.Stack())
		}
	}()

	if cache != nil {
		cached, ok, cacheErr := cache.Load(entry.Path)
		if cacheErr != nil {
			logging.LogWarning("Descriptor cache lookup failed for %s: %v", entry.Title, cacheErr)
		} else if ok {
			logging.DebugLog("Using cached descriptors for %s (%d keypoints)", entry.Title, cached.Len())
			return cached, nil
		}
	}

	set, err = extractor.Extract(entry.Image)
	if err != nil {
		return nil, fmt.Errorf("cannot extract features for %s: %w", entry.Title, err)
	}
	logging.DebugLog("Extracted %d keypoints from %s", set.Len(), entry.Title)

	if cache != nil {
		if storeErr := cache.Store(entry.Path, set); storeErr != nil {
			logging.LogWarning("Cannot cache descriptors for %s: %v", entry.Title, storeErr)
		}
	}
	return set, nil
}

// Features returns the descriptor set of the image at index
func (a *FeatureArena) Features(index int) (*types.DescriptorSet, error) {
	if index < 0 || index >= len(a.sets) {
		return nil, fmt.Errorf("no features for image index %d", index)
	}
	if a.errs[index] != nil {
		return nil, a.errs[index]
	}
	return a.sets[index], nil
}

// Close releases every descriptor matrix
func (a *FeatureArena) Close() {
	for _, s := range a.sets {
		s.Close()
	}
}
