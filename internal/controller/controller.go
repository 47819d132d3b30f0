// Package controller runs the thermostat's cooperative loop. Every Step reads
// the thermostat wires, drains the command sources, ticks the active mode
// and writes the arbitrated output. Nothing in a Step blocks on I/O.
package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/clock"
	"github.com/thatsimonsguy/packet-thermostat/internal/command"
	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/failsafecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/modecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/outputcontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/schedulecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/gpio"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/modes"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/serialport"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
	"github.com/thatsimonsguy/packet-thermostat/internal/telemetry"
	"github.com/thatsimonsguy/packet-thermostat/internal/temperature"
)

// Serial is the local console. Every line read is answered with the ready
// sentinel once it has been processed.
type Serial interface {
	Poll() (string, bool)
	WriteLine(line string) error
}

// Radio delivers packets and accepts link configuration changes.
type Radio interface {
	Poll() (protocol.Command, bool)
	Reconfigure(model.RadioConfig)
}

type Sampler interface {
	Step(now time.Time)
	Reading(sensor temperature.Sensor, now time.Time) temperature.Reading
}

type Options struct {
	Board    gpio.Board
	Store    *store.Store
	Sampler  Sampler
	Clock    *clock.RTC
	Reporter *telemetry.Reporter

	// Optional command sources.
	Serial   Serial
	Radio    Radio
	Commands *protocol.Queue

	// OnSafetyEvent is called for every heat-safety trip and clear.
	OnSafetyEvent func(model.SafetyEvent)
	// Kick is called at the end of every Step.
	Kick          func()

	Debounce      time.Duration
	LongIteration time.Duration
	FailsafeHold  time.Duration
}

type Thermostat struct {
	opts Options

	debouncer *gpio.Debouncer
	modes     *modecontroller.Controller
	arbiter   *outputcontroller.Arbiter
	interp    *command.Interpreter
	scheduler *schedulecontroller.Scheduler

	inputs  signal.Mask
	started bool
	now     time.Time
}

type noRadio struct{}

func (noRadio) Poll() (protocol.Command, bool) { return protocol.Command{}, false }
func (noRadio) Reconfigure(model.RadioConfig)  {}

func New(opts Options) *Thermostat {
	if opts.Radio == nil {
		opts.Radio = noRadio{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	t := &Thermostat{
		opts:      opts,
		debouncer: gpio.NewDebouncer(opts.Debounce, opts.LongIteration),
		arbiter:   outputcontroller.New(opts.Board, opts.FailsafeHold),
	}
	t.modes = modecontroller.New(opts.Store, t.arbiter)
	t.interp = command.New(opts.Store, t.modes, t.arbiter, opts.Clock, opts.Reporter, opts.Radio)
	t.scheduler = schedulecontroller.New(opts.Store, t.inject, opts.Reporter.RequestReport)
	return t
}

// Setup loads the persisted global settings and restores the power-up mode.
func (t *Thermostat) Setup() {
	st := t.opts.Store

	if c, err := st.Compressor(); err != nil {
		log.Error().Err(err).Msg("Failed to read compressor config")
	} else {
		t.arbiter.SetCompressor(c)
	}
	if h, err := st.HeatSafety(); err != nil {
		log.Error().Err(err).Msg("Failed to read heat-safety config")
	} else {
		t.arbiter.SetHeatSafety(h)
	}
	if l, err := st.Labels(); err != nil {
		log.Error().Err(err).Msg("Failed to read wire labels")
	} else {
		t.opts.Reporter.SetLabels(l)
	}
	if u, err := st.Units(); err != nil {
		log.Error().Err(err).Msg("Failed to read display units")
	} else {
		t.opts.Reporter.SetUnits(u)
	}

	t.modes.Setup()
}

// Modes exposes the mode controller for status reporting.
func (t *Thermostat) Modes() *modecontroller.Controller { return t.modes }

func (t *Thermostat) Arbiter() *outputcontroller.Arbiter { return t.arbiter }

// Step runs one loop iteration at now.
func (t *Thermostat) Step(now time.Time) {
	t.now = now

	t.readInputs(now)
	t.pollCommands(now)
	t.scheduler.Tick(now, t.opts.Clock.Now())
	t.modes.Tick(now)

	t.opts.Sampler.Step(now)
	inlet := t.opts.Sampler.Reading(temperature.Inlet, now)
	t.recordSafety(t.arbiter.EvaluateHeatSafety(now, inlet.Cx10, inlet.Valid), now)

	written, err := t.arbiter.Apply(now)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write outputs")
	}

	t.opts.Reporter.Observe(t.snapshot(now, written))

	if t.opts.Kick != nil {
		t.opts.Kick()
	}
}

// Run steps the loop every interval until ctx is done.
func (t *Thermostat) Run(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("Starting control loop")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Control loop stopped")
			return
		case now := <-ticker.C:
			t.Step(now)
		}
	}
}

func (t *Thermostat) readInputs(now time.Time) {
	raw, err := t.opts.Board.ReadInputs()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read thermostat inputs")
		raw = t.debouncer.State()
	}
	inputs := t.debouncer.Update(raw, now).Input()
	t.arbiter.ObserveInputs(inputs)

	if t.started && inputs == t.inputs {
		return
	}
	previous := t.inputs
	t.inputs = inputs
	t.started = true
	log.Debug().Uint8("inputs", uint8(inputs)).Uint8("previous", uint8(previous)).Msg("Inputs changed")
	t.modes.OnInputsChanged(inputs, previous)
}

func (t *Thermostat) pollCommands(now time.Time) {
	if t.opts.Serial != nil {
		for {
			line, ok := t.opts.Serial.Poll()
			if !ok {
				break
			}
			t.interp.Process(protocol.Command{Text: line, ToMe: true, Source: protocol.SourceSerial}, now)
			if err := t.opts.Serial.WriteLine(serialport.Ready); err != nil {
				log.Error().Err(err).Msg("Failed to write serial sentinel")
			}
		}
	}

	for {
		cmd, ok := t.opts.Radio.Poll()
		if !ok {
			break
		}
		t.interp.Process(cmd, now)
	}

	if t.opts.Commands != nil {
		for {
			cmd, ok := t.opts.Commands.Poll()
			if !ok {
				break
			}
			t.interp.Process(cmd, now)
		}
	}
}

func (t *Thermostat) inject(cmd protocol.Command) bool {
	return t.interp.Process(cmd, t.now)
}

func (t *Thermostat) recordSafety(action failsafecontroller.HeatSafetyAction, now time.Time) {
	if !action.Trip && !action.Clear {
		return
	}
	event := model.SafetyEvent{
		At:        now,
		Kind:      model.SafetyEventClear,
		Triple:    action.Triple + 1,
		InletCx10: action.InletCx10,
	}
	if action.Trip {
		event.Kind = model.SafetyEventTrip
		event.ToClear = action.ToClear
		event.Until = action.Until
	} else {
		log.Warn().Int("triple", event.Triple).Msg("Heat-safety shutdown cleared")
	}
	t.opts.Reporter.RequestReport()
	if t.opts.OnSafetyEvent != nil {
		t.opts.OnSafetyEvent(event)
	}
}

func (t *Thermostat) snapshot(now time.Time, written signal.Mask) telemetry.Snapshot {
	active := t.modes.Active()
	snap := telemetry.Snapshot{
		At:               t.opts.Clock.Now(),
		Mode:             t.modes.ID(),
		ModeName:         active.Name(),
		Inputs:           t.inputs,
		Outputs:          written,
		Inlet:            t.opts.Sampler.Reading(temperature.Inlet, now),
		Outlet:           t.opts.Sampler.Reading(temperature.Outlet, now),
		External:         t.opts.Sampler.Reading(temperature.External, now),
		HeatSafety:       t.arbiter.HeatSafetyActive(),
		CompressorLocked: t.arbiter.CompressorLocked(now),
	}
	snap.TargetCx10, snap.ActualCx10, snap.HasTarget = active.TargetAndActual()
	if staged, ok := active.(modes.Staged); ok {
		snap.Stage = int(staged.Stage())
		snap.FanOn = staged.FanOn()
	}
	return snap
}
