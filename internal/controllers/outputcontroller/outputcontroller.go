package outputcontroller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/failsafecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Writer drives the furnace output wires.
type Writer interface {
	WriteOutputs(m signal.Mask) error
}

// Arbiter sits between the active mode and the furnace. Modes only record
// a request; Apply runs the safety pipeline and writes the result.
type Arbiter struct {
	writer Writer

	requested signal.Mask
	written   signal.Mask
	wroteOnce bool

	compressor model.CompressorConfig
	holdUntil  time.Time

	heatSafetyCfg model.HeatSafetyConfig
	heatSafety    failsafecontroller.Tracker

	failsafeHold time.Duration
	failsafeAt   time.Time
	inputW       bool
}

func New(w Writer, failsafeHold time.Duration) *Arbiter {
	return &Arbiter{writer: w, failsafeHold: failsafeHold}
}

func (a *Arbiter) Update(m signal.Mask) { a.requested = m }

func (a *Arbiter) Set(bits signal.Mask) { a.requested |= bits }

func (a *Arbiter) Clear(bits signal.Mask) { a.requested &^= bits }

func (a *Arbiter) Requested() signal.Mask { return a.requested }

// Written is the last mask sent to the furnace, failsafe relay included.
func (a *Arbiter) Written() signal.Mask { return a.written }

func (a *Arbiter) SetCompressor(c model.CompressorConfig) { a.compressor = c }

func (a *Arbiter) SetHeatSafety(c model.HeatSafetyConfig) { a.heatSafetyCfg = c }

// ObserveInputs records the raw thermostat wires so the failsafe relay can
// tell when the board is overriding W.
func (a *Arbiter) ObserveInputs(inputs signal.Mask) { a.inputW = inputs.Has(signal.W) }

// CompressorLocked reports whether the short-cycle hold is running.
func (a *Arbiter) CompressorLocked(now time.Time) bool { return now.Before(a.holdUntil) }

func (a *Arbiter) HeatSafetyActive() bool { return a.heatSafety.Active() }

// EvaluateHeatSafety checks for an over-temperature inlet while the output
// matches one of the configured heating patterns.
func (a *Arbiter) EvaluateHeatSafety(now time.Time, inletCx10 int16, valid bool) failsafecontroller.HeatSafetyAction {
	return a.heatSafety.Step(a.heatSafetyCfg, a.written, inletCx10, valid, now)
}

// Apply computes the physical output from the current request and writes it
// if it changed.
func (a *Arbiter) Apply(now time.Time) (signal.Mask, error) {
	m := a.requested.Output()
	m &^= a.heatSafety.ToClear()
	m = a.lockout(m, now)
	if a.failsafeNeeded(m, now) {
		m |= signal.Failsafe
	}

	if a.wroteOnce && m == a.written {
		return m, nil
	}
	if err := a.writer.WriteOutputs(m); err != nil {
		return a.written, err
	}
	log.Debug().Uint8("requested", uint8(a.requested)).Uint8("written", uint8(m)).Msg("Outputs updated")
	a.written = m
	a.wroteOnce = true
	return m, nil
}

func (a *Arbiter) lockout(m signal.Mask, now time.Time) signal.Mask {
	if !a.compressor.Enabled() {
		return m
	}
	group := a.compressor.Mask
	if a.CompressorLocked(now) {
		return m &^ group
	}
	if a.written&group != 0 && m&group == 0 {
		a.holdUntil = now.Add(time.Duration(a.compressor.HoldSeconds) * time.Second)
		log.Info().
			Uint8("mask", uint8(group)).
			Time("until", a.holdUntil).
			Msg("Compressor off, short-cycle hold started")
	}
	return m
}

// failsafeNeeded engages the relay while the board drives W differently
// from the thermostat, and keeps it engaged for the minimum hold after.
func (a *Arbiter) failsafeNeeded(m signal.Mask, now time.Time) bool {
	if m.Has(signal.W) != a.inputW {
		a.failsafeAt = now
		return true
	}
	return !a.failsafeAt.IsZero() && now.Sub(a.failsafeAt) < a.failsafeHold
}
