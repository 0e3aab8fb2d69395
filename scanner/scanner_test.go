package scanner_test

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"imagedupes/imageprocessor"
	"imagedupes/scanner"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 8), B: uint8(y * 8), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func relative(t *testing.T, root string, paths []string) []string {
	t.Helper()
	absRoot, err := filepath.Abs(root)
	require.NoError(t, err)
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(absRoot, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscover_GroupsByExtensionInOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.png", "a.png", "c.jpg", "a.jpg", "notes.txt"} {
		touch(t, filepath.Join(root, name))
	}

	paths, err := scanner.Discover(scanner.ScanOptions{FolderPath: root, Extensions: []string{".jpg", ".png"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "c.jpg", "a.png", "b.png"}, relative(t, root, paths))
}

func TestDiscover_DefaultExtensions(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"x.png", "y.jpg", "z.gif"} {
		touch(t, filepath.Join(root, name))
	}

	paths, err := scanner.Discover(scanner.ScanOptions{FolderPath: root})

	require.NoError(t, err)
	assert.Equal(t, []string{"y.jpg", "x.png"}, relative(t, root, paths))
}

func TestDiscover_ExtensionMatchIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "UPPER.JPG"))
	touch(t, filepath.Join(root, "lower.jpg"))

	paths, err := scanner.Discover(scanner.ScanOptions{FolderPath: root, Extensions: []string{"JPG"}})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"UPPER.JPG", "lower.jpg"}, relative(t, root, paths))
}

func TestDiscover_RecursiveOnlyWhenAsked(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "top.jpg"))
	touch(t, filepath.Join(root, "sub", "deep.jpg"))
	touch(t, filepath.Join(root, "sub", "deeper", "deepest.png"))

	flat, err := scanner.Discover(scanner.ScanOptions{FolderPath: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"top.jpg"}, relative(t, root, flat))

	all, err := scanner.Discover(scanner.ScanOptions{FolderPath: root, Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/deep.jpg", "top.jpg", "sub/deeper/deepest.png"}, relative(t, root, all))
}

func TestDiscover_SkipsHiddenEntries(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, ".hidden.jpg"))
	touch(t, filepath.Join(root, ".thumbs", "cached.jpg"))
	touch(t, filepath.Join(root, "visible.jpg"))

	paths, err := scanner.Discover(scanner.ScanOptions{FolderPath: root, Recursive: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"visible.jpg"}, relative(t, root, paths))
}

func TestDiscover_InvalidFolder(t *testing.T) {
	root := t.TempDir()
	_, err := scanner.Discover(scanner.ScanOptions{FolderPath: filepath.Join(root, "missing")})
	assert.Error(t, err)

	file := filepath.Join(root, "file.jpg")
	touch(t, file)
	_, err = scanner.Discover(scanner.ScanOptions{FolderPath: file})
	assert.Error(t, err)
}

func TestNormalizeExtensions(t *testing.T) {
	got := scanner.NormalizeExtensions([]string{"PNG", ".jpg", " .png ", "", "jpg"})
	assert.Equal(t, []string{".png", ".jpg"}, got)
}

func TestLoadImageSet_UnreadableFileStaysInSet(t *testing.T) {
	root := t.TempDir()
	names := []string{"img0.png", "img1.png", "broken.png", "img3.png", "img4.png"}
	for i, name := range names {
		if name == "broken.png" {
			require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("not an image"), 0o644))
			continue
		}
		writePNG(t, filepath.Join(root, name), uint8(i*40))
	}
	paths, err := scanner.Discover(scanner.ScanOptions{FolderPath: root})
	require.NoError(t, err)

	set, stats := scanner.LoadImageSet(root, paths, imageprocessor.NewImageLoaderRegistry(), 3)
	defer set.Close()

	require.Len(t, set, 5)
	assert.Equal(t, 4, stats.Loaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 4, set.ValidCount())

	for i, entry := range set {
		assert.Equal(t, i, entry.Index)
		assert.Equal(t, paths[i], entry.Path)
		if entry.Title == "broken.png" {
			var decodeErr *scanner.DecodeError
			assert.True(t, errors.As(entry.Err, &decodeErr))
			assert.False(t, entry.Valid())
			continue
		}
		require.True(t, entry.Valid(), entry.Title)
		assert.Equal(t, 12, entry.Image.Rows())
		assert.Equal(t, 16, entry.Image.Cols())
		assert.Equal(t, 3, entry.Image.Channels())
		assert.Equal(t, "png", entry.Format)
	}
}

type panickingLoader struct{}

func (panickingLoader) LoadImage(path string) (gocv.Mat, error) {
	panic("decoder crashed")
}

func TestLoadImageSet_LoaderPanicBecomesDecodeError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.jpg")
	touch(t, path)

	set, stats := scanner.LoadImageSet(root, []string{path}, panickingLoader{}, 1)
	defer set.Close()

	require.Len(t, set, 1)
	assert.Equal(t, 1, stats.Failed)
	var decodeErr *scanner.DecodeError
	assert.ErrorAs(t, set[0].Err, &decodeErr)
	assert.Equal(t, "a.jpg", set[0].Title)
}
