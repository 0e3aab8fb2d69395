package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"imagedupes/imageprocessor"
	"imagedupes/logging"
	"imagedupes/types"
)

// Loader decodes one image file
type Loader interface {
	LoadImage(path string) (gocv.Mat, error)
}

// Discover lists image files grouped by extension, in the configured extension
// order, each group in lexical walk order
func Discover(options ScanOptions) ([]string, error) {
	root, err := filepath.Abs(options.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve folder path %s: %w", options.FolderPath, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	extensions := NormalizeExtensions(options.Extensions)
	if len(extensions) == 0 {
		extensions = imageprocessor.DefaultExtensions
	}

	files, err := listFiles(root, options.Recursive)
	if err != nil {
		return nil, err
	}

	stats := FileStats{perExt: make(map[string]int)}
	var paths []string
	for _, ext := range extensions {
		if !imageprocessor.IsSupportedExtension(ext) {
			logging.LogWarning("Extension %s is not a supported image format, ignoring it", ext)
			continue
		}
		for _, path := range files {
			if hasExtension(path, ext) {
				paths = append(paths, path)
				stats.perExt[ext]++
				stats.totalFiles++
			}
		}
	}

	PrintStartupInfo(stats, extensions, options)
	return paths, nil
}

// listFiles returns the regular files directly under root or, when recursive,
// under every non-hidden directory below it
func listFiles(root string, recursive bool) ([]string, error) {
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", root, err)
		}
		files := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.Type().IsRegular() && !isHidden(entry.Name()) {
				files = append(files, filepath.Join(root, entry.Name()))
			}
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.LogWarning("Error accessing path %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk folder %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// LoadImageSet decodes paths concurrently into an ImageSet that keeps the order of paths.
// Titles are the paths relative to root.
func LoadImageSet(root string, paths []string, loader Loader, maxWorkers int) (types.ImageSet, LoadStats) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	set := make(types.ImageSet, len(paths))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxWorkers)

	for i, path := range paths {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			set[i] = loadEntry(i, absRoot, p, loader)
			logging.LogImageLoaded(set[i].Title, set[i].Err)
		}(i, path)
	}
	wg.Wait()

	var stats LoadStats
	for _, entry := range set {
		if entry.Valid() {
			stats.Loaded++
		} else {
			stats.Failed++
		}
	}
	return set, stats
}

// loadEntry decodes a single file, converting loader panics into a DecodeError
func loadEntry(index int, root, path string, loader Loader) (entry *types.ImageEntry) {
	entry = &types.ImageEntry{
		Index:  index,
		Title:  titleFor(root, path),
		Path:   path,
		Format: string(imageprocessor.GetFileFormat(path)),
	}

	defer func() {
		if r := recover(); r != nil {
			logging.LogError("Panic during image loading: %v, file: %s\nStack trace: %s", r, path, string(debug.Stack()))
			entry.Image = gocv.NewMat()
			entry.Err = &DecodeError{Path: path, Err: fmt.Errorf("panic during image loading: %v", r)}
		}
	}()

	img, err := loader.LoadImage(path)
	if err == nil && img.Empty() {
		err = fmt.Errorf("image is empty after loading")
	}
	if err != nil {
		if !img.Empty() {
			img.Close()
		}
		entry.Image = gocv.NewMat()
		entry.Err = &DecodeError{Path: path, Err: err}
		return entry
	}

	entry.Image = img
	return entry
}

// titleFor returns path relative to root, or path itself when it is not below root
func titleFor(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
