package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"imagedupes/comparator"
	"imagedupes/config"
	"imagedupes/database"
	"imagedupes/imageprocessor"
	"imagedupes/logging"
	"imagedupes/report"
	"imagedupes/scanner"
	"imagedupes/scheduler"
	"imagedupes/signalhandler"
	"imagedupes/types"
	"imagedupes/utils"
)

type cliOptions struct {
	configPath    string
	recursive     bool
	ratio         float64
	minSimilarity int
	workers       int
	output        string
	cache         string
	noCache       bool
	debug         bool
	logFile       string
	noProgress    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "imagedupes [path]",
		Short: "Report duplicate and near-duplicate images in a folder",
		Long: `imagedupes compares every pair of images in a folder. Pixel-identical
pairs are reported at 100%; other pairs are scored by matching SIFT features
and reported when the score reaches the minimum similarity.

Options are read from ConfigFile.ini ([Options] section) and can be
overridden by the flags below.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return run(cmd.Context(), buildOverrides(cmd.Flags(), opts, path), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "configuration file (default: ./"+config.FileName+" or next to the executable)")
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "scan sub folders")
	f.Float64Var(&opts.ratio, "ratio", config.DefaultSimilarityRatio, "ratio test factor in (0,1], smaller is stricter")
	f.IntVar(&opts.minSimilarity, "min-similarity", config.DefaultMinimumSimilarity, "lowest similarity percentage reported")
	f.IntVarP(&opts.workers, "workers", "w", config.DefaultWorkers, "parallel comparison workers")
	f.StringVarP(&opts.output, "output", "o", "", "report file (default: <path>/"+report.DefaultFileName+")")
	f.StringVar(&opts.cache, "cache", utils.GetDefaultCachePath(), "descriptor cache database")
	f.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the descriptor cache")
	f.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	f.StringVar(&opts.logFile, "logfile", "", "write logs to this file instead of stderr")
	f.BoolVar(&opts.noProgress, "no-progress", false, "hide progress bars")

	return cmd
}

// buildOverrides keeps only the flags the user actually set
func buildOverrides(fs *pflag.FlagSet, opts *cliOptions, path string) config.Overrides {
	o := config.Overrides{Path: path, NoCache: opts.noCache}
	if fs.Changed("recursive") {
		o.Recursive = &opts.recursive
	}
	if fs.Changed("ratio") {
		o.SimilarityRatio = &opts.ratio
	}
	if fs.Changed("min-similarity") {
		o.MinimumSimilarity = &opts.minSimilarity
	}
	if fs.Changed("workers") {
		o.Workers = &opts.workers
	}
	if fs.Changed("output") {
		o.OutputPath = &opts.output
	}
	if fs.Changed("cache") {
		o.CachePath = &opts.cache
	}
	return o
}

func run(parent context.Context, overrides config.Overrides, opts *cliOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := logging.SetupLogger(opts.logFile, opts.debug); err != nil {
		fmt.Printf("Warning: Failed to setup logging: %v\n", err)
	}
	defer logging.CloseLogger()

	ctx, cancel := signalhandler.SetupHandler(parent)
	defer cancel()

	cfg, _, err := config.Load(config.Find(opts.configPath), overrides, utils.GetDefaultCachePath())
	if err != nil {
		logging.LogError("%v", err)
		return err
	}

	startTime := time.Now()
	fmt.Printf("Similarity ratio: %.2f, minimum similarity: %d%%, workers: %d\n",
		cfg.SimilarityRatio, cfg.MinimumSimilarity, cfg.Workers)

	set, err := loadImages(cfg, !opts.noProgress)
	if err != nil {
		logging.LogError("Error scanning folder: %v", err)
		return err
	}
	defer set.Close()

	stats, err := compareImages(ctx, cfg, set, !opts.noProgress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Printf("\nInterrupted. Partial report written to %s\n", cfg.OutputPath)
		} else {
			logging.LogError("Error comparing images: %v", err)
		}
		return err
	}

	endTime := time.Now()
	fmt.Printf("\nComparison completed successfully!\n")
	fmt.Printf("- Images: %d (%d skipped)\n", stats.Images, stats.SkippedImages)
	fmt.Printf("- Comparisons: %d (%d failed)\n", stats.Compared, stats.Failed)
	fmt.Printf("- Reported pairs: %d\n", stats.Reported)
	fmt.Printf("- Report: %s\n", cfg.OutputPath)
	fmt.Printf("Start time: %s\n", utils.FormatClock(startTime))
	fmt.Printf("End time: %s\n", utils.FormatClock(endTime))
	fmt.Printf("Required time was: %s\n", utils.FormatElapsed(endTime.Sub(startTime)))
	return nil
}

// loadImages discovers and decodes the images of the run
func loadImages(cfg config.RunConfig, showProgress bool) (types.ImageSet, error) {
	options := scanner.ScanOptions{
		FolderPath: cfg.Path,
		Recursive:  cfg.Recursive,
		Extensions: cfg.Extensions,
		MaxWorkers: signalhandler.GetOptimalProcs(),
	}

	paths, err := scanner.Discover(options)
	if err != nil {
		return nil, err
	}
	fmt.Printf("There are %d files, %d comparisons to run\n", len(paths), scheduler.PairCount(len(paths)))

	var s *spinner.Spinner
	if showProgress {
		s = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Decoding images..."
		s.Start()
	}

	start := time.Now()
	set, loadStats := scanner.LoadImageSet(cfg.Path, paths, imageprocessor.NewImageLoaderRegistry(), options.MaxWorkers)
	if s != nil {
		s.Stop()
	}
	scanner.PrintCompletionStats(loadStats, time.Since(start))
	return set, nil
}

// compareImages extracts features once per image and runs all pairs
func compareImages(ctx context.Context, cfg config.RunConfig, set types.ImageSet, showProgress bool) (scheduler.Stats, error) {
	var cache *database.Cache
	if cfg.CachePath != "" {
		c, err := database.OpenCache(cfg.CachePath, imageprocessor.SIFTExtractorName)
		if err != nil {
			logging.LogWarning("Continuing without descriptor cache: %v", err)
		} else {
			cache = c
			defer cache.Close()
		}
	}

	arenaOpts := imageprocessor.ArenaOptions{Workers: cfg.Workers}
	if cache != nil {
		arenaOpts.Cache = cache
	}
	var bar *progressbar.ProgressBar
	if showProgress && set.ValidCount() > 0 {
		bar = progressbar.Default(int64(set.ValidCount()), "Extracting features")
		arenaOpts.OnImageDone = func() { _ = bar.Add(1) }
	}

	arena, err := imageprocessor.BuildFeatureArena(ctx, set, arenaOpts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return scheduler.Stats{}, err
	}
	defer arena.Close()

	if cache != nil {
		if cs, err := cache.Stats(); err == nil {
			logging.DebugLog("Descriptor cache %s holds %d images (%d keypoints)", cfg.CachePath, cs.Entries, cs.Keypoints)
		}
	}

	compareOpts := comparator.Options{
		SimilarityRatio:   cfg.SimilarityRatio,
		MinimumSimilarity: cfg.MinimumSimilarity,
	}
	comparers := make([]scheduler.PairComparer, cfg.Workers)
	for w := range comparers {
		matcher := imageprocessor.NewFlannMatcher()
		defer matcher.Close()
		comparers[w] = comparator.New(compareOpts, matcher, arena)
	}

	writer, err := report.Create(cfg.OutputPath)
	if err != nil {
		return scheduler.Stats{}, err
	}
	defer writer.Close()

	sched, err := scheduler.New(comparers, writer, scheduler.Options{ShowProgress: showProgress})
	if err != nil {
		return scheduler.Stats{}, err
	}
	return sched.Run(ctx, set)
}
