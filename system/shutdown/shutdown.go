package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

var ErrStalled = errors.New("control loop stalled")

// ExitFunc is replaced in tests.
var ExitFunc = os.Exit

// Outputs is the furnace side of the board.
type Outputs interface {
	WriteOutputs(m signal.Mask) error
}

var (
	mu      sync.Mutex
	outputs Outputs
)

// Register sets the outputs released on shutdown.
func Register(o Outputs) {
	mu.Lock()
	defer mu.Unlock()
	outputs = o
}

// release drives every output off. With the failsafe relay released the
// thermostat wires pass straight through to the furnace.
func release() {
	mu.Lock()
	defer mu.Unlock()
	if outputs == nil {
		return
	}
	if err := outputs.WriteOutputs(0); err != nil {
		log.Error().Err(err).Msg("Failed to release outputs")
		return
	}
	log.Info().Msg("Outputs released, thermostat passing through")
}

func Shutdown() {
	release()
	ExitFunc(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	release()
	ExitFunc(1)
}

// Watchdog exits the process when the loop stops kicking it. systemd
// restarts the service.
type Watchdog struct {
	timeout time.Duration
	last    atomic.Int64
	now     func() time.Time
}

func NewWatchdog(timeout time.Duration) *Watchdog {
	w := &Watchdog{timeout: timeout, now: time.Now}
	w.Kick()
	return w
}

func (w *Watchdog) Kick() {
	w.last.Store(w.now().UnixNano())
}

func (w *Watchdog) Expired() bool {
	return w.now().Sub(time.Unix(0, w.last.Load())) > w.timeout
}

// Run checks the watchdog until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Expired() {
				ShutdownWithError(ErrStalled, "Watchdog expired")
				return
			}
		}
	}
}
