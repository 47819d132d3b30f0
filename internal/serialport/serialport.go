package serialport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	// MaxLine bounds one command line, terminator excluded.
	MaxLine = 80

	// Ready is written after each processed line so scripts can pace
	// themselves.
	Ready = "ready>"
)

var ErrTimeout = errors.New("timed out waiting for ready")

// Framer splits a byte stream into CR/LF terminated lines. Lines longer
// than MaxLine are discarded up to the next terminator.
type Framer struct {
	buf      []byte
	overflow bool
}

// Feed consumes one byte and returns a completed line, if any.
func (f *Framer) Feed(b byte) (string, bool) {
	switch b {
	case '\r', '\n':
		line, overflow := string(f.buf), f.overflow
		f.buf, f.overflow = f.buf[:0], false
		if overflow {
			log.Warn().Int("max", MaxLine).Msg("Serial line too long, discarded")
			return "", false
		}
		if line == "" {
			return "", false
		}
		return line, true
	}
	if f.overflow {
		return "", false
	}
	if len(f.buf) >= MaxLine {
		f.overflow = true
		return "", false
	}
	f.buf = append(f.buf, b)
	return "", false
}

// Port is a line oriented serial link. A background reader frames input
// so Poll never blocks.
type Port struct {
	rw      io.ReadWriteCloser
	lines   chan string
	mu      sync.Mutex
	closing chan struct{}
	done    chan struct{}
	err     error
}

func Open(name string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	log.Info().Str("port", name).Int("baud", baudRate).Msg("Serial port open")
	return New(p), nil
}

// New frames lines from an already open stream.
func New(rw io.ReadWriteCloser) *Port {
	p := &Port{
		rw:      rw,
		lines:   make(chan string, 16),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer close(p.done)
	defer close(p.lines)

	var f Framer
	r := bufio.NewReader(p.rw)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("Serial read failed")
			}
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
		if line, ok := f.Feed(b); ok {
			select {
			case p.lines <- line:
			case <-p.closing:
				return
			}
		}
	}
}

// Poll returns the next received line without waiting.
func (p *Port) Poll() (string, bool) {
	select {
	case line, ok := <-p.lines:
		return line, ok
	default:
		return "", false
	}
}

func (p *Port) WriteLine(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.rw, line+"\r\n"); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// Command sends line and waits for the ready sentinel. Other lines
// received meanwhile are passed to echo, which may be nil.
func (p *Port) Command(line string, timeout time.Duration, echo func(string)) error {
	if err := p.WriteLine(line); err != nil {
		return err
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case got, ok := <-p.lines:
			if !ok {
				return fmt.Errorf("serial link closed: %w", p.Err())
			}
			if strings.Contains(got, Ready) {
				return nil
			}
			if echo != nil {
				echo(got)
			}
		case <-deadline.C:
			return fmt.Errorf("%w after %q", ErrTimeout, line)
		}
	}
}

func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Port) Close() error {
	close(p.closing)
	err := p.rw.Close()
	<-p.done
	return err
}
