package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultCacheFileName is the descriptor cache created next to the executable
const DefaultCacheFileName = "imagedupes.db"

// GetDefaultCachePath returns the default path for the descriptor cache
func GetDefaultCachePath() string {
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return DefaultCacheFileName
	}

	return filepath.Join(filepath.Dir(exePath), DefaultCacheFileName)
}

// FormatElapsed renders a duration as "H[hr] M[min] S[sec]"
func FormatElapsed(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%d[hr] %d[min] %d[sec]", hours, minutes, seconds)
}

// FormatClock renders a wall clock time the way the run summary prints it
func FormatClock(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04:05")
}
