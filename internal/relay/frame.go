package relay

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"collabcanvas/internal/canvas"
)

// ErrChecksum is returned by DecodeFrame when the pixels do not match the
// digest they were published with.
var ErrChecksum = errors.New("frame checksum mismatch")

// Frame is one published composite. Pixels travel zstd-compressed; Sum is the
// blake3 digest of the uncompressed pixels.
type Frame struct {
	Instance string `cbor:"instance"`
	Seq      uint64 `cbor:"seq"`
	Dim      int    `cbor:"dim"`
	Sum      []byte `cbor:"sha"`
	ZPix     []byte `cbor:"zpix"`
}

var (
	encMode cbor.EncMode
	decoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relay: CBOR encoder initialization failed: " + err.Error())
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("relay: zstd decoder initialization failed: " + err.Error())
	}
}

// MarshalFrame encodes f as deterministic CBOR.
func MarshalFrame(f Frame) ([]byte, error) {
	return encMode.Marshal(f)
}

// DecodeFrame parses a published message and recovers the snapshot.
func DecodeFrame(data []byte) (Frame, canvas.Snapshot, error) {
	var f Frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Frame{}, canvas.Snapshot{}, errors.Wrap(err, "unmarshal frame failed")
	}
	pix, err := decoder.DecodeAll(f.ZPix, nil)
	if err != nil {
		return Frame{}, canvas.Snapshot{}, errors.Wrap(err, "decompress pixels failed")
	}
	if len(pix) != f.Dim*f.Dim*canvas.PixelSize {
		return Frame{}, canvas.Snapshot{}, errors.Errorf("frame has %d bytes for side %d", len(pix), f.Dim)
	}
	sum := blake3.Sum256(pix)
	if !bytes.Equal(sum[:], f.Sum) {
		return Frame{}, canvas.Snapshot{}, ErrChecksum
	}
	return f, canvas.Snapshot{Dim: f.Dim, Pix: pix}, nil
}
