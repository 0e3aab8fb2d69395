package scanner

import "fmt"

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath string
	Recursive  bool
	Extensions []string // extension groups, scanned in this order
	MaxWorkers int      // decoding goroutines
}

// FileStats tracks information about discovered files
type FileStats struct {
	totalFiles int
	perExt     map[string]int
}

// LoadStats summarises a load
type LoadStats struct {
	Loaded int
	Failed int
}

// DecodeError marks an image file that could not be decoded
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
