package rotator

import (
	"bytes"
	"image"
	"io"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Encoder writes img to w in some image format.
type Encoder func(w io.Writer, img image.Image) error

// EncodeWebP encodes img as a lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	return nativewebp.Encode(w, img, &nativewebp.Options{})
}

func (s *Set) render(img *Image, angle int) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encode(&buf, RotateBitmap(img.Original, angle)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RotateBitmap draws src onto a new canvas turned clockwise by angle, which
// must be a multiple of 90. The canvas swaps width and height for odd
// quarter turns. The transform is the usual canvas sequence: translate to
// the canvas centre, rotate, draw the source centred on the origin.
func RotateBitmap(src image.Image, angle int) *image.NRGBA {
	angle = NormalizeAngle(angle)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := w, h
	if angle%180 != 0 {
		cw, ch = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, cw, ch))

	cos, sin := quarterTurn(angle)
	cx := float64(b.Min.X) + float64(w)/2
	cy := float64(b.Min.Y) + float64(h)/2
	s2d := f64.Aff3{
		cos, -sin, float64(cw)/2 - cos*cx + sin*cy,
		sin, cos, float64(ch)/2 - sin*cx - cos*cy,
	}
	draw.NearestNeighbor.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}

// quarterTurn returns exact cosine and sine for a normalized quarter-turn
// angle; math.Cos would leave residue that shifts pixel centres.
func quarterTurn(angle int) (cos, sin float64) {
	switch angle {
	case 90:
		return 0, 1
	case 180:
		return -1, 0
	case 270:
		return 0, -1
	default:
		return 1, 0
	}
}
