package modes

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

const autoCommand = "AUTO_SETTINGS"

// auto runs the cool algorithm first. Only when cooling is not wanted does
// the heat side get a look, so the two never drive at once. Both sides
// share the stage timing of the cool settings.
type auto struct {
	cool
	heatStage  Stage
	autoTarget int16
}

func newAuto(settings *model.Settings, out Outputs) *auto {
	a := &auto{cool: cool{sensorDriven: sensorDriven{settings: settings, out: out}}}
	a.self = a
	a.autoTarget = settings.Auto.HeatTargetCx10
	return a
}

func (a *auto) Type() model.ModeType { return model.Auto }

func (a *auto) HeatStage() Stage { return a.heatStage }

func (a *auto) needed(t int16) bool {
	if !a.cool.needed(t) {
		return false
	}
	a.autoTarget = a.settings.Sensor.TargetCx10
	a.heatStage = Off
	return true
}

func (a *auto) target() int16 { return a.autoTarget }

func (a *auto) heatingMask(stage Stage) signal.Mask {
	as := &a.settings.Auto
	return stageMask(stage, as.HeatStage1, as.HeatStage2, as.HeatStage3)
}

// idle is the heat side, evaluated when cooling is not needed.
func (a *auto) idle(t int16, output signal.Mask, now time.Time) signal.Mask {
	as := &a.settings.Auto

	var need bool
	if a.heatStage == Off {
		need = t <= as.HeatActivateCx10
	} else {
		need = t < as.HeatTargetCx10
	}

	if !need {
		a.heatStage = Off
		return output
	}
	a.autoTarget = as.HeatTargetCx10
	if a.heatStage == Off {
		a.heatStage = Stage1
		a.stage1At = now
		return as.HeatStage1
	}
	a.heatStage = stageFor(now.Sub(a.stage1At), &a.settings.Sensor)
	return a.heatingMask(a.heatStage)
}

func (a *auto) humidity(rh, t int16, output signal.Mask) signal.Mask {
	if a.heatStage != Off {
		return output
	}
	return a.cool.humidity(rh, t, output)
}

func (a *auto) Tick(now time.Time) {
	if a.heatStage == Off {
		a.cool.Tick(now)
		return
	}
	if a.sensorTimedOut(now) {
		a.heatStage = Off
		return
	}
	next := stageFor(now.Sub(a.stage1At), &a.settings.Sensor)
	if next > a.heatStage {
		a.heatStage = next
		a.out.Update(a.withFan(a.heatingMask(next)))
	}
}

func (a *auto) ProcessCommand(cmd protocol.Command, now time.Time) bool {
	if a.cool.ProcessCommand(cmd, now) {
		return true
	}
	if !cmd.ToMe {
		return false
	}
	args, ok := protocol.After(cmd.Text, autoCommand)
	if !ok {
		return false
	}
	return a.applyHeatSettings(args)
}

// applyHeatSettings parses "<target> <activate> <s1> <s2> <s3>". The first
// mask fills all three stages so a single stage furnace needs one field.
func (a *auto) applyHeatSettings(args string) bool {
	as := &a.settings.Auto
	sc := protocol.NewScanner(args)
	a.heatStage = Off

	if sc.Int16(&as.HeatTargetCx10) {
		as.HeatActivateCx10 = as.HeatTargetCx10 - defaultActivateOffset
	}
	sc.Int16(&as.HeatActivateCx10)
	if sc.HexMask(&as.HeatStage1) {
		as.HeatStage2 = as.HeatStage1
		as.HeatStage3 = as.HeatStage1
	}
	sc.HexMask(&as.HeatStage2)
	sc.HexMask(&as.HeatStage3)

	log.Debug().Int16("heat_target", as.HeatTargetCx10).Int16("heat_activate", as.HeatActivateCx10).Msg("Auto heat settings updated")
	return sc.Err() == nil
}
