// Package store lays out thermostat configuration in a small non-volatile
// byte image and computes where each mode instance's record lives.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

var (
	ErrInvalidType     = errors.New("invalid mode type")
	ErrNoSuchInstance  = errors.New("instance index beyond configured count")
	ErrInvalidSchedule = errors.New("schedule index out of range")
)

// Memory is the durable byte image behind a Store.
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

type Store struct {
	mem Memory
}

func New(mem Memory) *Store {
	return &Store{mem: mem}
}

func (s *Store) read(addr int, v any) error {
	buf := make([]byte, binary.Size(v))
	if _, err := s.mem.ReadAt(buf, int64(addr)); err != nil {
		return fmt.Errorf("read %d bytes at %d: %w", len(buf), addr, err)
	}
	return binary.Read(bytes.NewReader(buf), byteOrder, v)
}

func (s *Store) write(addr int, v any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, byteOrder, v); err != nil {
		return fmt.Errorf("encode at %d: %w", addr, err)
	}
	if _, err := s.mem.WriteAt(buf.Bytes(), int64(addr)); err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", buf.Len(), addr, err)
	}
	return nil
}

func (s *Store) Radio() (model.RadioConfig, error) {
	var r model.RadioConfig
	err := s.read(RadioAddr, &r)
	return r, err
}

func (s *Store) SetRadio(r model.RadioConfig) error {
	return s.write(RadioAddr, &r)
}

// Labels returns the wire names, falling back to the board names for any
// label never written.
func (s *Store) Labels() (signal.Labels, error) {
	raw := make([]byte, len(signal.Labels{})*signal.LabelLength)
	labels := signal.DefaultLabels
	if _, err := s.mem.ReadAt(raw, int64(LabelsAddr)); err != nil {
		return labels, fmt.Errorf("read labels: %w", err)
	}
	for i := range labels {
		b := raw[i*signal.LabelLength : (i+1)*signal.LabelLength]
		if b[0] == signal.Unset {
			continue
		}
		labels[i] = strings.TrimRight(string(b), "\x00\xff ")
	}
	return labels, nil
}

func (s *Store) SetLabels(labels signal.Labels) error {
	raw := make([]byte, len(labels)*signal.LabelLength)
	for i, l := range labels {
		copy(raw[i*signal.LabelLength:(i+1)*signal.LabelLength], l)
	}
	if _, err := s.mem.WriteAt(raw, int64(LabelsAddr)); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}

func (s *Store) Units() (model.DisplayUnits, error) {
	var u uint8
	if err := s.read(UnitsAddr, &u); err != nil {
		return model.Celsius, err
	}
	if u == uint8(model.Fahrenheit) {
		return model.Fahrenheit, nil
	}
	return model.Celsius, nil
}

func (s *Store) SetUnits(u model.DisplayUnits) error {
	return s.write(UnitsAddr, uint8(u))
}

func (s *Store) Compressor() (model.CompressorConfig, error) {
	var c model.CompressorConfig
	err := s.read(CompressorAddr, &c)
	return c, err
}

func (s *Store) SetCompressor(c model.CompressorConfig) error {
	return s.write(CompressorAddr, &c)
}

func (s *Store) HeatSafety() (model.HeatSafetyConfig, error) {
	var h model.HeatSafetyConfig
	err := s.read(HeatSafetyAddr, &h)
	return h, err
}

func (s *Store) SetHeatSafety(h model.HeatSafetyConfig) error {
	return s.write(HeatSafetyAddr, &h)
}

func scheduleAddr(i int) (int, error) {
	if i < 0 || i >= model.NumScheduleEntries {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSchedule, i)
	}
	return ScheduleAddr + i*binary.Size(model.ScheduleEntry{}), nil
}

func (s *Store) ScheduleEntry(i int) (model.ScheduleEntry, error) {
	addr, err := scheduleAddr(i)
	if err != nil {
		return model.EmptyScheduleEntry, err
	}
	var e model.ScheduleEntry
	err = s.read(addr, &e)
	return e, err
}

func (s *Store) SetScheduleEntry(i int, e model.ScheduleEntry) error {
	addr, err := scheduleAddr(i)
	if err != nil {
		return err
	}
	return s.write(addr, &e)
}

// Schedule returns all entries in slot order.
func (s *Store) Schedule() ([model.NumScheduleEntries]model.ScheduleEntry, error) {
	var entries [model.NumScheduleEntries]model.ScheduleEntry
	err := s.read(ScheduleAddr, &entries)
	return entries, err
}
