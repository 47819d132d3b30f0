package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Count returns how many instances of t are configured. PassThrough always
// has exactly one; an unset count byte reads as zero.
func (s *Store) Count(t model.ModeType) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	if t == model.PassThrough {
		return 1, nil
	}
	var n uint8
	if err := s.read(CountsAddr+int(t)-1, &n); err != nil {
		return 0, err
	}
	if n == signal.Unset {
		return 0, nil
	}
	return int(n), nil
}

// SetCount changes how many slots are reserved for t. Records of every
// higher numbered type are not moved, so they are effectively discarded.
// PassThrough's count is fixed and the call is a no-op.
func (s *Store) SetCount(t model.ModeType, n uint8) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	if t == model.PassThrough {
		return nil
	}
	return s.write(CountsAddr+int(t)-1, n)
}

// Address computes where instance which of t is stored. which may equal the
// count, giving the first byte after the type's last record.
func (s *Store) Address(t model.ModeType, which int) (int, error) {
	count, err := s.Count(t)
	if err != nil {
		return 0, err
	}
	if which < 0 || which > count {
		return 0, fmt.Errorf("%w: %s index %d, count %d", ErrNoSuchInstance, t, which, count)
	}
	if t == model.PassThrough {
		return ModesAddr + which*RecordSize(t), nil
	}
	prevCount, err := s.Count(t - 1)
	if err != nil {
		return 0, err
	}
	base, err := s.Address(t-1, prevCount)
	if err != nil {
		return 0, err
	}
	return base + which*RecordSize(t), nil
}

func (s *Store) recordAddress(id model.ModeID) (int, error) {
	count, err := s.Count(id.Type)
	if err != nil {
		return 0, err
	}
	if int(id.Index) >= count {
		return 0, fmt.Errorf("%w: %s, count %d", ErrNoSuchInstance, id, count)
	}
	return s.Address(id.Type, int(id.Index))
}

// Load reads the committed record of id into the layers of into that the
// type persists. A never-written name leaves the current name in place.
func (s *Store) Load(id model.ModeID, into *model.Settings) error {
	addr, err := s.recordAddress(id)
	if err != nil {
		return err
	}
	raw := make([]byte, RecordSize(id.Type))
	if _, err := s.mem.ReadAt(raw, int64(addr)); err != nil {
		return fmt.Errorf("read %s at %d: %w", id, addr, err)
	}

	r := bytes.NewReader(raw)
	for i, l := range layers(id.Type, into) {
		if i == 0 && raw[0] == signal.Unset {
			if _, err := r.Seek(int64(binary.Size(l)), io.SeekCurrent); err != nil {
				return err
			}
			continue
		}
		if err := binary.Read(r, byteOrder, l); err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
	}
	return nil
}

// Commit writes the persisted layers of from as the record of id.
func (s *Store) Commit(id model.ModeID, from *model.Settings) error {
	addr, err := s.recordAddress(id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, l := range layers(id.Type, from) {
		if err := binary.Write(&buf, byteOrder, l); err != nil {
			return fmt.Errorf("encode %s: %w", id, err)
		}
	}
	if _, err := s.mem.WriteAt(buf.Bytes(), int64(addr)); err != nil {
		return fmt.Errorf("write %s at %d: %w", id, addr, err)
	}
	return nil
}

// Selection returns the persisted power-up mode. ok is false when nothing
// valid is stored.
func (s *Store) Selection() (id model.ModeID, ok bool, err error) {
	var raw [2]uint8
	if err := s.read(SelectionAddr, &raw); err != nil {
		return id, false, err
	}
	id = model.ModeID{Type: model.ModeType(raw[0]), Index: raw[1]}
	if !id.Type.Valid() {
		return id, false, nil
	}
	count, err := s.Count(id.Type)
	if err != nil {
		return id, false, err
	}
	return id, int(id.Index) < count, nil
}

func (s *Store) SaveSelection(id model.ModeID) error {
	return s.write(SelectionAddr, [2]uint8{uint8(id.Type), id.Index})
}
