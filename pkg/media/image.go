package media

import (
	"bytes"
	"io"

	"github.com/disintegration/imaging"
)

// maxEdge caps the longest side of an uploaded image. Anything larger
// gets scaled down before it hits object storage.
const maxEdge = 1600

// NormalizeImage decodes an uploaded image, scales it down to fit
// within maxEdge on its longest side, and re-encodes it as JPEG.
// Returns the encoded bytes and the content type to store under.
// Non-image payloads fail at decode.
func NormalizeImage(r io.Reader) (*bytes.Buffer, string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", err
	}
	return &buf, "image/jpeg", nil
}
