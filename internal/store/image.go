package store

import (
	"errors"
	"fmt"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

var ErrOutOfRange = errors.New("address beyond storage capacity")

// Image is a RAM-only Memory, erased to the sentinel value.
type Image []byte

func NewImage() Image {
	img := make(Image, Capacity)
	Erase(img)
	return img
}

// Erase fills b with the unset sentinel.
func Erase(b []byte) {
	for i := range b {
		b[i] = signal.Unset
	}
}

func (img Image) ReadAt(p []byte, off int64) (int, error) {
	if err := CheckRange(off, len(p), len(img)); err != nil {
		return 0, err
	}
	return copy(p, img[off:]), nil
}

func (img Image) WriteAt(p []byte, off int64) (int, error) {
	if err := CheckRange(off, len(p), len(img)); err != nil {
		return 0, err
	}
	return copy(img[off:], p), nil
}

// CheckRange validates an access of n bytes at off within size.
func CheckRange(off int64, n, size int) error {
	if off < 0 || off+int64(n) > int64(size) {
		return fmt.Errorf("%w: %d+%d > %d", ErrOutOfRange, off, n, size)
	}
	return nil
}
