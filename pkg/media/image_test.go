package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 16 {
		for x := 0; x < w; x += 16 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestNormalizeImageReencodesAsJPEG(t *testing.T) {
	out, contentType, err := NormalizeImage(encodePNG(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	img, err := imaging.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestNormalizeImageScalesDown(t *testing.T) {
	out, _, err := NormalizeImage(encodePNG(t, 4000, 2000))
	require.NoError(t, err)

	img, err := imaging.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, maxEdge, img.Bounds().Dx())
	assert.Equal(t, maxEdge/2, img.Bounds().Dy())
}

func TestNormalizeImageRejectsNonImage(t *testing.T) {
	_, _, err := NormalizeImage(strings.NewReader("definitely not an image"))
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("avatars", ".jpg")
	assert.True(t, strings.HasPrefix(key, "avatars/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	// Extensions are normalized to a single leading dot.
	assert.True(t, strings.HasSuffix(ObjectKey("covers", "png"), ".png"))

	assert.NotEqual(t, ObjectKey("avatars", ".jpg"), ObjectKey("avatars", ".jpg"))
}
