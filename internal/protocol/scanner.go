package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Scanner reads space separated numeric fields left to right. Each getter
// assigns its destination only when a well formed field is present. Once a
// field is missing or malformed every later getter is a no-op, so trailing
// fields that are omitted leave their destinations untouched.
type Scanner struct {
	fields []string
	pos    int
	done   bool
	err    error
}

func NewScanner(s string) *Scanner {
	return &Scanner{fields: strings.Fields(s)}
}

// Err reports the first malformed field, if any.
func (sc *Scanner) Err() error { return sc.err }

// More reports whether unread fields remain and nothing has failed.
func (sc *Scanner) More() bool {
	return !sc.done && sc.pos < len(sc.fields)
}

func (sc *Scanner) next() (string, bool) {
	if !sc.More() {
		sc.done = true
		return "", false
	}
	f := sc.fields[sc.pos]
	sc.pos++
	return f, true
}

func (sc *Scanner) parse(base, bits int, signed bool) (int64, bool) {
	f, ok := sc.next()
	if !ok {
		return 0, false
	}
	text := f
	if base == 16 {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	}
	var (
		v   int64
		err error
	)
	if signed {
		v, err = strconv.ParseInt(text, base, bits)
	} else {
		var u uint64
		u, err = strconv.ParseUint(text, base, bits)
		v = int64(u)
	}
	if err != nil {
		sc.err = fmt.Errorf("field %d %q: %w", sc.pos, f, err)
		sc.done = true
		return 0, false
	}
	return v, true
}

// Word assigns the next raw field.
func (sc *Scanner) Word(dst *string) bool {
	f, ok := sc.next()
	if ok {
		*dst = f
	}
	return ok
}

func (sc *Scanner) Int16(dst *int16) bool {
	v, ok := sc.parse(10, 16, true)
	if ok {
		*dst = int16(v)
	}
	return ok
}

func (sc *Scanner) Uint16(dst *uint16) bool {
	v, ok := sc.parse(10, 16, false)
	if ok {
		*dst = uint16(v)
	}
	return ok
}

func (sc *Scanner) Uint32(dst *uint32) bool {
	v, ok := sc.parse(10, 32, false)
	if ok {
		*dst = uint32(v)
	}
	return ok
}

func (sc *Scanner) Uint8(dst *uint8) bool {
	v, ok := sc.parse(10, 8, false)
	if ok {
		*dst = uint8(v)
	}
	return ok
}

func (sc *Scanner) HexUint8(dst *uint8) bool {
	v, ok := sc.parse(16, 8, false)
	if ok {
		*dst = uint8(v)
	}
	return ok
}

func (sc *Scanner) HexUint32(dst *uint32) bool {
	v, ok := sc.parse(16, 32, false)
	if ok {
		*dst = uint32(v)
	}
	return ok
}

func (sc *Scanner) HexMask(dst *signal.Mask) bool {
	v, ok := sc.parse(16, 8, false)
	if ok {
		*dst = signal.Mask(v)
	}
	return ok
}
