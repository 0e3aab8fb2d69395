package imageprocessor

import (
	"path/filepath"
	"strings"
)

// FormatType represents a known image format type
type FormatType string

// Known image format constants
const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatBMP     FormatType = "bmp"
	FormatGIF     FormatType = "gif"
	FormatTIFF    FormatType = "tiff"
	FormatWEBP    FormatType = "webp"
)

// DefaultExtensions are the extension groups scanned when none are configured, in scan order
var DefaultExtensions = []string{".jpg", ".png"}

// Map of extensions to format types
var formatExtensions = map[string]FormatType{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".bmp":  FormatBMP,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWEBP,
}

// GetFileFormat returns the format type based on file extension
func GetFileFormat(path string) FormatType {
	ext := strings.ToLower(filepath.Ext(path))
	format, exists := formatExtensions[ext]
	if !exists {
		return FormatUnknown
	}
	return format
}

// NormalizeExtension lowercases ext and makes sure it starts with a dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// IsSupportedExtension reports whether ext has a registered format
func IsSupportedExtension(ext string) bool {
	_, ok := formatExtensions[NormalizeExtension(ext)]
	return ok
}
