// Package modes implements the five furnace control algorithms. Exactly one
// is live at a time; the mode controller replaces it wholesale on a switch.
package modes

import (
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Outputs receives the mask the active mode wants asserted. The output
// arbiter implements it.
type Outputs interface {
	Update(mask signal.Mask)
	Set(bits signal.Mask)
	Clear(bits signal.Mask)
}

type Mode interface {
	Type() model.ModeType
	Name() string
	OnInputsChanged(inputs, previous signal.Mask)
	// ProcessCommand sees every command the generic handlers did not
	// consume, including radio packets addressed to other nodes.
	ProcessCommand(cmd protocol.Command, now time.Time) bool
	// TargetAndActual is in Celsius x10. ok is false for modes that do not
	// regulate temperature.
	TargetAndActual() (target, actual int16, ok bool)
	Tick(now time.Time)
	TurnOff()
}

// New builds fresh run state for t over the given working settings.
func New(t model.ModeType, settings *model.Settings, out Outputs) Mode {
	switch t {
	case model.MapInputToOutput:
		return &mapInputToOutput{settings: settings, out: out}
	case model.Heat:
		return newHeat(settings, out)
	case model.Cool:
		return newCool(settings, out)
	case model.Auto:
		return newAuto(settings, out)
	}
	return &passThrough{settings: settings, out: out}
}

type Stage uint8

const (
	Off Stage = iota
	Stage1
	Stage2
	Stage3
)

func (s Stage) String() string {
	switch s {
	case Stage1:
		return "stage1"
	case Stage2:
		return "stage2"
	case Stage3:
		return "stage3"
	}
	return "off"
}

// Staged is implemented by the sensor driven modes.
type Staged interface {
	Stage() Stage
	FanOn() bool
}

type passThrough struct {
	settings *model.Settings
	out      Outputs
}

func (p *passThrough) Type() model.ModeType { return model.PassThrough }

func (p *passThrough) Name() string { return p.settings.Base.Name.String() }

func (p *passThrough) OnInputsChanged(inputs, _ signal.Mask) {
	p.out.Update(inputs.Input().Output())
}

func (p *passThrough) ProcessCommand(protocol.Command, time.Time) bool { return false }

func (p *passThrough) TargetAndActual() (int16, int16, bool) { return 0, 0, false }

func (p *passThrough) Tick(time.Time) {}

func (p *passThrough) TurnOff() { p.out.Update(0) }
