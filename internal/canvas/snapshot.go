package canvas

import (
	"encoding/binary"
	"image"
	"image/png"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// MaxScale bounds the upscaling factor accepted by EncodePNG.
const MaxScale = 8

// ErrEmpty is returned when rendering a snapshot with no painters.
var ErrEmpty = errors.New("canvas is empty")

// Snapshot is a copy of the composite taken on the hub goroutine.
// Pix holds Dim*Dim non-premultiplied RGBA pixels.
type Snapshot struct {
	Dim int
	Pix []byte
}

// Empty reports whether there was nothing to draw.
func (s Snapshot) Empty() bool {
	return s.Dim == 0 || len(s.Pix) == 0
}

// Frame is the binary message sent to canvas viewers: the side length as a
// big-endian uint16 followed by the raw pixels. Nil when empty.
func (s Snapshot) Frame() []byte {
	if s.Empty() {
		return nil
	}
	return EncodeFrame(s.Dim, s.Pix)
}

// EncodeFrame prefixes pixels with the 2-byte big-endian side length.
func EncodeFrame(dim int, pixels []byte) []byte {
	frame := make([]byte, 2, 2+len(pixels))
	binary.BigEndian.PutUint16(frame, uint16(dim))
	return append(frame, pixels...)
}

// DecodeFrame parses a binary composite frame. A side of zero means the
// canvas was cleared and yields an empty snapshot.
func DecodeFrame(frame []byte) (Snapshot, error) {
	if len(frame) < 2 {
		return Snapshot{}, errors.Errorf("frame too short: %d bytes", len(frame))
	}
	dim := int(binary.BigEndian.Uint16(frame))
	if dim == 0 {
		return Snapshot{}, nil
	}
	if dim > MaxSide {
		return Snapshot{}, errors.Errorf("frame side %d exceeds %d", dim, MaxSide)
	}
	pix := frame[2:]
	if want := dim * dim * PixelSize; len(pix) != want {
		return Snapshot{}, errors.Errorf("frame has %d pixel bytes, want %d for side %d", len(pix), want, dim)
	}
	return Snapshot{Dim: dim, Pix: pix}, nil
}

// Image wraps the pixels without copying them.
func (s Snapshot) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    s.Pix,
		Stride: s.Dim * PixelSize,
		Rect:   image.Rect(0, 0, s.Dim, s.Dim),
	}
}

// EncodePNG writes the snapshot as a PNG, blown up by scale using nearest
// neighbour so individual pixels stay crisp.
func (s Snapshot) EncodePNG(w io.Writer, scale int) error {
	if s.Empty() {
		return ErrEmpty
	}
	if scale < 1 || scale > MaxScale {
		return errors.Errorf("scale %d out of range [1, %d]", scale, MaxScale)
	}
	var img image.Image = s.Image()
	if scale > 1 {
		dst := image.NewNRGBA(image.Rect(0, 0, s.Dim*scale, s.Dim*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	return errors.Wrap(png.Encode(w, img), "encode png failed")
}
