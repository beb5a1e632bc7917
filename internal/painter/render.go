package painter

import (
	"image"
	"math"

	"github.com/gogpu/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// HueStep is how far the disc's hue turns between frames, in degrees.
const HueStep = 360.0 / 256

// Renderer draws a disc whose hue rotates a little on every frame.
type Renderer struct {
	w, h int
	hue  float64
	fill func(dc *gg.Context) error
}

// NewRenderer returns a renderer for a w by h tile.
func NewRenderer(w, h int) *Renderer {
	return &Renderer{w: w, h: h, fill: (*gg.Context).Fill}
}

// Size is the tile size the renderer draws.
func (r *Renderer) Size() (int, int) {
	return r.w, r.h
}

// Next draws the next frame and returns its non-premultiplied RGBA bytes,
// w*h*4 of them. The hue only advances when the frame was drawn completely.
func (r *Renderer) Next() ([]byte, error) {
	dc := gg.NewContext(r.w, r.h)
	defer dc.Close()

	bg := colorful.Hsv(math.Mod(r.hue+180, 360), 0.35, 0.25)
	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, float64(r.w), float64(r.h))
	if err := r.fill(dc); err != nil {
		return nil, errors.Wrap(err, "fill background failed")
	}

	radius := math.Min(float64(r.w), float64(r.h)) * 0.4
	dc.SetColor(colorful.Hsv(r.hue, 0.85, 0.95))
	dc.DrawCircle(float64(r.w)/2, float64(r.h)/2, radius)
	if err := r.fill(dc); err != nil {
		return nil, errors.Wrap(err, "fill disc failed")
	}

	r.hue = math.Mod(r.hue+HueStep, 360)

	dst := image.NewNRGBA(image.Rect(0, 0, r.w, r.h))
	src := dc.Image()
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst.Pix, nil
}
