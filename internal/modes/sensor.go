package modes

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

const (
	settingsCommand = "HVAC_SETTINGS "
	fanCommand      = "HVAC FAN=O"

	// A report from a lower numbered sensor is ignored while a higher
	// numbered one has reported within this window.
	sensorPriorityWindow = 15 * time.Minute

	defaultActivateOffset int16 = 6
	maxSensorID                 = 32
)

// thermostat is the direction specific part of a sensor driven mode.
type thermostat interface {
	needed(tCx10 int16) bool
	defaultActivate(targetCx10 int16) int16
	// idle runs when needed returned false and may still drive the output.
	idle(tCx10 int16, output signal.Mask, now time.Time) signal.Mask
	humidity(rhX10, tCx10 int16, output signal.Mask) signal.Mask
	target() int16
}

// sensorDriven ignores the thermostat wires and stages the furnace from
// remote temperature reports.
type sensorDriven struct {
	settings *model.Settings
	out      Outputs
	self     thermostat

	stage      Stage
	stage1At   time.Time
	lastSender uint8
	lastHeard  time.Time
	fanOn      bool
	actual     int16
}

func (s *sensorDriven) Name() string { return s.settings.Base.Name.String() }

func (s *sensorDriven) Stage() Stage { return s.stage }

func (s *sensorDriven) FanOn() bool { return s.fanOn }

func (s *sensorDriven) OnInputsChanged(_, _ signal.Mask) {}

func (s *sensorDriven) TargetAndActual() (int16, int16, bool) {
	return s.self.target(), s.actual, true
}

func (s *sensorDriven) TurnOff() {
	s.out.Update(s.settings.Sensor.AlwaysOnMask)
}

func (s *sensorDriven) withFan(m signal.Mask) signal.Mask {
	if s.fanOn {
		return m | s.settings.Sensor.FanMask
	}
	return m
}

func secondsOf(n uint16) time.Duration { return time.Duration(n) * time.Second }

// stageFor picks the stage from the time since stage 1 was entered.
func stageFor(since time.Duration, ss *model.SensorSettings) Stage {
	switch {
	case since >= secondsOf(ss.SecondsToStage3):
		return Stage3
	case since >= secondsOf(ss.SecondsToStage2):
		return Stage2
	}
	return Stage1
}

func stageMask(stage Stage, s1, s2, s3 signal.Mask) signal.Mask {
	switch stage {
	case Stage1:
		return s1
	case Stage2:
		return s2
	case Stage3:
		return s3
	}
	return 0
}

func (s *sensorDriven) coolingMask(stage Stage) signal.Mask {
	ss := &s.settings.Sensor
	return stageMask(stage, ss.Stage1, ss.Stage2, ss.Stage3)
}

func (s *sensorDriven) ProcessCommand(cmd protocol.Command, now time.Time) bool {
	if cmd.ToMe {
		if protocol.HasPrefixFold(cmd.Text, fanCommand) {
			s.setFan(len(cmd.Text) > len(fanCommand) && (cmd.Text[len(fanCommand)] == 'N' || cmd.Text[len(fanCommand)] == 'n'))
			return true
		}
		if args, ok := protocol.After(cmd.Text, settingsCommand); ok {
			return s.applySettings(args)
		}
		return false
	}
	return s.onReport(cmd, now)
}

func (s *sensorDriven) setFan(on bool) {
	s.fanOn = on
	if on {
		s.out.Set(s.settings.Sensor.FanMask)
	} else if s.stage == Off {
		s.out.Clear(s.settings.Sensor.FanMask)
	}
}

// applySettings parses "<target> <activate> <sensorMask> <fanMask>
// <alwaysOn> <s1> <s2> <s3> <secToS2> <secToS3>". Masks are hex. The mode
// drops to off and asserts only the always-on bits afterwards.
func (s *sensorDriven) applySettings(args string) bool {
	ss := &s.settings.Sensor
	sc := protocol.NewScanner(args)
	s.stage = Off

	if sc.Int16(&ss.TargetCx10) {
		ss.ActivateCx10 = s.self.defaultActivate(ss.TargetCx10)
	}
	sc.Int16(&ss.ActivateCx10)
	sc.HexUint32(&ss.SensorMask)
	sc.HexMask(&ss.FanMask)
	sc.HexMask(&ss.AlwaysOnMask)
	sc.HexMask(&ss.Stage1)
	sc.HexMask(&ss.Stage2)
	sc.HexMask(&ss.Stage3)
	sc.Uint16(&ss.SecondsToStage2)
	sc.Uint16(&ss.SecondsToStage3)

	s.out.Update(s.withFan(ss.AlwaysOnMask))
	return sc.Err() == nil
}

// outranked reports whether a report from sender must yield to a higher
// numbered sensor heard recently.
func (s *sensorDriven) outranked(sender uint8, now time.Time) bool {
	return !s.lastHeard.IsZero() && sender < s.lastSender && now.Sub(s.lastHeard) < sensorPriorityWindow
}

func (s *sensorDriven) onReport(cmd protocol.Command, now time.Time) bool {
	ss := &s.settings.Sensor
	if cmd.SenderID >= maxSensorID || ss.SensorMask&(1<<cmd.SenderID) == 0 {
		return false
	}
	t, ok := protocol.ReportValue(cmd.Text, "T:")
	if !ok {
		return false
	}
	if s.outranked(cmd.SenderID, now) {
		log.Debug().Uint8("sender", cmd.SenderID).Uint8("preferred", s.lastSender).Msg("Ignoring lower priority sensor")
		return true
	}
	s.lastSender = cmd.SenderID
	s.lastHeard = now
	s.actual = t

	output := ss.AlwaysOnMask
	switch {
	case !s.self.needed(t):
		s.stage = Off
		output = s.self.idle(t, output, now)
	case s.stage == Off:
		s.stage = Stage1
		s.stage1At = now
		output = ss.Stage1
	default:
		s.stage = stageFor(now.Sub(s.stage1At), ss)
		output = s.coolingMask(s.stage)
	}

	if rh, ok := protocol.ReportValue(cmd.Text, "R:"); ok && rh > 0 {
		output = s.self.humidity(rh, t, output)
	}
	s.out.Update(s.withFan(output))
	return true
}

// sensorTimedOut turns the mode off once the accepted sensor has been
// silent for twice the stage 3 delay.
func (s *sensorDriven) sensorTimedOut(now time.Time) bool {
	if now.Sub(s.lastHeard) <= 2*secondsOf(s.settings.Sensor.SecondsToStage3) {
		return false
	}
	log.Warn().Uint8("sender", s.lastSender).Dur("silent", now.Sub(s.lastHeard)).Msg("Sensor timed out")
	s.actual = 0
	s.TurnOff()
	return true
}

func (s *sensorDriven) Tick(now time.Time) {
	if s.stage == Off {
		return
	}
	if s.sensorTimedOut(now) {
		s.stage = Off
		return
	}
	next := stageFor(now.Sub(s.stage1At), &s.settings.Sensor)
	if next > s.stage {
		s.stage = next
		s.out.Update(s.withFan(s.coolingMask(next)))
	}
}

type heat struct {
	sensorDriven
}

func newHeat(settings *model.Settings, out Outputs) *heat {
	h := &heat{sensorDriven{settings: settings, out: out}}
	h.self = h
	return h
}

func (h *heat) Type() model.ModeType { return model.Heat }

func (h *heat) needed(t int16) bool {
	ss := &h.settings.Sensor
	if h.stage == Off {
		return t <= ss.ActivateCx10
	}
	return t < ss.TargetCx10
}

func (h *heat) defaultActivate(target int16) int16 { return target - defaultActivateOffset }

func (h *heat) idle(_ int16, output signal.Mask, _ time.Time) signal.Mask { return output }

func (h *heat) humidity(_, _ int16, output signal.Mask) signal.Mask { return output }

func (h *heat) target() int16 { return h.settings.Sensor.TargetCx10 }
