package imageprocessor_test

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagedupes/imageprocessor"
)

func TestGetFileFormat(t *testing.T) {
	assert.Equal(t, imageprocessor.FormatJPEG, imageprocessor.GetFileFormat("a/b/photo.JPEG"))
	assert.Equal(t, imageprocessor.FormatPNG, imageprocessor.GetFileFormat("x.png"))
	assert.Equal(t, imageprocessor.FormatUnknown, imageprocessor.GetFileFormat("notes.txt"))
	assert.Equal(t, imageprocessor.FormatUnknown, imageprocessor.GetFileFormat("noext"))
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".jpg", imageprocessor.NormalizeExtension("JPG"))
	assert.Equal(t, ".png", imageprocessor.NormalizeExtension(" .PNG "))
	assert.Equal(t, "", imageprocessor.NormalizeExtension("  "))
}

func TestIsSupportedExtension(t *testing.T) {
	assert.True(t, imageprocessor.IsSupportedExtension("jpg"))
	assert.True(t, imageprocessor.IsSupportedExtension(".WEBP"))
	assert.False(t, imageprocessor.IsSupportedExtension(".exe"))
}

func TestImageLoaderRegistry_LoadsGIFThroughGoDecoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	palette := color.Palette{color.Black, color.White}
	img := image.NewPaletted(image.Rect(0, 0, 10, 6), palette)
	img.SetColorIndex(3, 3, 1)

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, img, nil))
	require.NoError(t, f.Close())

	mat, err := imageprocessor.NewImageLoaderRegistry().LoadImage(path)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 6, mat.Rows())
	assert.Equal(t, 10, mat.Cols())
	assert.Equal(t, 3, mat.Channels())
}

func TestImageLoaderRegistry_MissingFile(t *testing.T) {
	_, err := imageprocessor.NewImageLoaderRegistry().LoadImage(filepath.Join(t.TempDir(), "gone.jpg"))
	assert.Error(t, err)
}
