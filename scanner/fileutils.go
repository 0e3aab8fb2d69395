package scanner

import (
	"path/filepath"
	"strings"

	"imagedupes/imageprocessor"
)

// hasExtension checks the extension of path case-insensitively
func hasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// isHidden reports dot files and directories, which are never scanned
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// NormalizeExtensions lowercases, dots and dedupes ext, keeping the first occurrence order
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = imageprocessor.NormalizeExtension(ext)
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}
