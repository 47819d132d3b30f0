package gpio

import (
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Debouncer turns rectified 24VAC samples into stable levels. A bit goes
// active as soon as it is seen and inactive only after it has been missing
// for the whole window. After an unusually long gap between samples every
// active bit gets a fresh window.
type Debouncer struct {
	window        time.Duration
	longIteration time.Duration

	lastSeen   [8]time.Time
	state      signal.Mask
	lastSample time.Time
}

func NewDebouncer(window, longIteration time.Duration) *Debouncer {
	return &Debouncer{window: window, longIteration: longIteration}
}

func (d *Debouncer) Update(raw signal.Mask, now time.Time) signal.Mask {
	stalled := !d.lastSample.IsZero() && now.Sub(d.lastSample) > d.longIteration
	d.lastSample = now

	for i := range d.lastSeen {
		bit := signal.Mask(1) << i
		switch {
		case raw.Has(bit):
			d.lastSeen[i] = now
			d.state |= bit
		case !d.state.Has(bit):
		case stalled:
			d.lastSeen[i] = now
		case now.Sub(d.lastSeen[i]) >= d.window:
			d.state &^= bit
		}
	}
	return d.state
}

func (d *Debouncer) State() signal.Mask { return d.state }
