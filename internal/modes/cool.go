package modes

import (
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

const (
	humidityCommand = "HUM_SETTINGS"

	humidityHysteresisX10 = 15
	// Dehumidify gives up once it has cooled this far below activate.
	dehumidifyAbandonCx10 = 5
)

type cool struct {
	sensorDriven
	dehumidifying bool
}

func newCool(settings *model.Settings, out Outputs) *cool {
	c := &cool{sensorDriven: sensorDriven{settings: settings, out: out}}
	c.self = c
	return c
}

func (c *cool) Type() model.ModeType { return model.Cool }

func (c *cool) needed(t int16) bool {
	ss := &c.settings.Sensor
	if c.stage == Off {
		return t >= ss.ActivateCx10
	}
	return t > ss.TargetCx10
}

func (c *cool) defaultActivate(target int16) int16 { return target + defaultActivateOffset }

func (c *cool) idle(_ int16, output signal.Mask, _ time.Time) signal.Mask { return output }

func (c *cool) target() int16 { return c.settings.Sensor.TargetCx10 }

// humidity merges the dehumidify masks into output while relative humidity
// is above the setting.
func (c *cool) humidity(rh, t int16, output signal.Mask) signal.Mask {
	cs := &c.settings.Cool
	if cs.HumidityX10 == model.HumidityDisabled {
		return output
	}
	threshold := int(cs.HumidityX10) + humidityHysteresisX10
	if c.dehumidifying {
		threshold = int(cs.HumidityX10) - humidityHysteresisX10
	}
	if int(rh) <= threshold {
		c.dehumidifying = false
		return output
	}
	if t < c.settings.Sensor.ActivateCx10-dehumidifyAbandonCx10 {
		c.dehumidifying = false
		return output
	}
	c.dehumidifying = true
	return (output | cs.DehumidifyOn) &^ cs.DehumidifyOff
}

func (c *cool) Dehumidifying() bool { return c.dehumidifying }

func (c *cool) ProcessCommand(cmd protocol.Command, now time.Time) bool {
	if cmd.ToMe {
		if args, ok := protocol.After(cmd.Text, humidityCommand); ok {
			return c.applyHumidity(args)
		}
	}
	return c.sensorDriven.ProcessCommand(cmd, now)
}

// applyHumidity parses "<RHx10> <maskOn> <maskOff>". The setting is
// disabled first, so a bare HUM_SETTINGS turns dehumidify off.
func (c *cool) applyHumidity(args string) bool {
	cs := &c.settings.Cool
	cs.HumidityX10 = model.HumidityDisabled
	sc := protocol.NewScanner(args)
	if !sc.More() {
		return true
	}
	sc.Uint16(&cs.HumidityX10)
	sc.HexMask(&cs.DehumidifyOn)
	sc.HexMask(&cs.DehumidifyOff)
	return sc.Err() == nil
}
