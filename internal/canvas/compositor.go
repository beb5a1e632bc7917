// Package canvas composites painter tiles into one square image.
//
// Constraints:
//   - each painter gets a TileSide x TileSide tile
//   - once placed, a painter does not move unless painters before it are removed
//   - the composite is always square
//   - at most MaxPainters painters, so the composite is at most 320x320 pixels
//
// A Compositor is not safe for concurrent use. The hub owns it and touches it
// from a single goroutine.
package canvas

const (
	// TileSide is the width and height of a painter tile in pixels.
	TileSide = 40
	// PixelSize is the number of bytes per RGBA pixel.
	PixelSize = 4
	// TileBytes is the exact payload length a painter must send.
	TileBytes = TileSide * TileSide * PixelSize
	// MaxPainters is the number of slots in the grid.
	MaxPainters = 64
	// MaxSide is the side of the composite with every slot taken.
	MaxSide = 8 * TileSide
)

type slot struct {
	id   uint64
	tile [TileBytes]byte
}

// Compositor keeps painter tiles in insertion order and renders them into a
// single flat pixel buffer.
type Compositor struct {
	slots  []*slot
	pixels []byte
}

// NewCompositor returns an empty compositor.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// Insert gives painter id a fresh, all-zero tile in the next grid position.
func (c *Compositor) Insert(id uint64) error {
	if c.indexOf(id) >= 0 {
		return ErrDuplicate
	}
	if len(c.slots) >= MaxPainters {
		return ErrCapacity
	}

	before := c.Dim()
	c.slots = append(c.slots, &slot{id: id})
	after := c.Dim()
	if after > before {
		c.pixels = make([]byte, after*after*PixelSize)
		c.fullRender()
	}
	return nil
}

// Remove drops the painter's slot. Later slots shift down one position but the
// composite is left alone until the next update or resizing insert redraws it.
func (c *Compositor) Remove(id uint64) {
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	c.slots = append(c.slots[:i], c.slots[i+1:]...)
}

// Update replaces the painter's tile and draws it into the composite.
func (c *Compositor) Update(id uint64, data []byte) error {
	switch {
	case len(data) > TileBytes:
		return clientError("data is larger than expected (%d > %d bytes)", len(data), TileBytes)
	case len(data) < TileBytes:
		return clientError("data is smaller than expected (%d < %d bytes)", len(data), TileBytes)
	}

	i := c.indexOf(id)
	if i < 0 {
		return serverError("could not find painter %d to update pixels", id)
	}
	s := c.slots[i]
	copy(s.tile[:], data)

	pos, ok := CoordinateOf(i + 1)
	if !ok {
		return serverError("not a valid coordinate: %d", i+1)
	}
	c.blit(pos, &s.tile)
	return nil
}

// Dim is the side of the composite in pixels.
func (c *Compositor) Dim() int {
	return tilesPerSide(len(c.slots)) * TileSide
}

// Len is the number of active painters.
func (c *Compositor) Len() int {
	return len(c.slots)
}

// Pixels returns the live composite buffer, Dim()*Dim()*PixelSize bytes. It is
// empty when there are no painters. After a Remove the buffer can be larger
// than the current Dim, so it is cut down to keep frames well formed.
// The slice is only valid until the next call that mutates c.
func (c *Compositor) Pixels() []byte {
	if len(c.slots) == 0 {
		return nil
	}
	dim := c.Dim()
	return c.pixels[:dim*dim*PixelSize]
}

// Snapshot copies the composite so it can leave the owning goroutine.
func (c *Compositor) Snapshot() Snapshot {
	pix := c.Pixels()
	if len(pix) == 0 {
		return Snapshot{}
	}
	out := make([]byte, len(pix))
	copy(out, pix)
	return Snapshot{Dim: c.Dim(), Pix: out}
}

func (c *Compositor) indexOf(id uint64) int {
	for i, s := range c.slots {
		if s.id == id {
			return i
		}
	}
	return -1
}

func (c *Compositor) blit(pos Coord, tile *[TileBytes]byte) {
	const copyWidth = TileSide * PixelSize
	stride := c.Dim() * PixelSize
	start := pos.Row*TileSide*stride + pos.Col*copyWidth
	for line := 0; line < TileSide; line++ {
		dst := start + line*stride
		src := line * copyWidth
		copy(c.pixels[dst:dst+copyWidth], tile[src:src+copyWidth])
	}
}

func (c *Compositor) fullRender() {
	for i, s := range c.slots {
		pos, ok := CoordinateOf(i + 1)
		if !ok {
			continue
		}
		c.blit(pos, &s.tile)
	}
}

// tilesPerSide is ceil(sqrt(n)).
func tilesPerSide(n int) int {
	k := 0
	for k*k < n {
		k++
	}
	return k
}
