package viewer

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"collabcanvas/internal/canvas"
)

// PNGFile writes every frame to path, scaled up by scale. The file is
// replaced atomically; a cleared canvas removes it.
func PNGFile(path string, scale int) FrameFunc {
	return func(s canvas.Snapshot) error {
		if s.Empty() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "remove cleared canvas failed")
			}
			return nil
		}
		tmp, err := os.CreateTemp(filepath.Dir(path), ".canvas-*.png")
		if err != nil {
			return errors.Wrap(err, "create temp file failed")
		}
		defer os.Remove(tmp.Name())
		if err := s.EncodePNG(tmp, scale); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return errors.Wrap(err, "close temp file failed")
		}
		return errors.Wrap(os.Rename(tmp.Name(), path), "replace canvas file failed")
	}
}
