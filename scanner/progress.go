package scanner

import (
	"fmt"
	"strings"
	"time"

	"imagedupes/logging"
)

// PrintStartupInfo displays what was discovered before decoding starts
func PrintStartupInfo(stats FileStats, extensions []string, options ScanOptions) {
	counts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		counts = append(counts, fmt.Sprintf("%d %s", stats.perExt[ext], ext))
	}

	fmt.Printf("Grouping %s files in %s (recursive: %v)...\n",
		strings.Join(extensions, " and "), options.FolderPath, options.Recursive)
	fmt.Printf("Found %d image files (%s)\n", stats.totalFiles, strings.Join(counts, ", "))

	logging.DebugLog("Discovered %d image files under %s: %s",
		stats.totalFiles, options.FolderPath, strings.Join(counts, ", "))
}

// PrintCompletionStats displays statistics after decoding
func PrintCompletionStats(stats LoadStats, elapsed time.Duration) {
	logging.DebugLog("Loading completed in %v. Loaded: %d, Errors: %d", elapsed, stats.Loaded, stats.Failed)

	fmt.Printf("Loaded %d images in %v.\n", stats.Loaded, elapsed.Round(time.Millisecond))
	if stats.Failed > 0 {
		fmt.Printf("Skipped %d unreadable images.\n", stats.Failed)
		fmt.Println("Check the log for details.")
	}
}
