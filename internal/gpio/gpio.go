package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/pinctrl"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

var safeMode bool

func SetSafeMode(enabled bool) {
	safeMode = enabled
}

var readLevels = pinctrl.ReadLevels

var setPins = pinctrl.SetPins

// MockGPIO swaps the pinctrl calls for in-memory ones.
func MockGPIO(set func(pin int, high bool), read func(pin int) bool) {
	setPins = func(pins []int, opts ...string) error {
		high := false
		for _, o := range opts {
			if o == "dh" {
				high = true
			}
		}
		for _, p := range pins {
			set(p, high)
		}
		return nil
	}
	readLevels = func(pins []int) ([]bool, error) {
		levels := make([]bool, len(pins))
		for i, p := range pins {
			levels[i] = read(p)
		}
		return levels, nil
	}
}

func ResetGPIO() {
	readLevels = pinctrl.ReadLevels
	setPins = pinctrl.SetPins
	safeMode = false
}

// Board reads the thermostat wires and drives the furnace wires.
type Board interface {
	ReadInputs() (signal.Mask, error)
	WriteOutputs(m signal.Mask) error
}

// PinBoard maps signal bits onto GPIO pins. Unwired bits read as inactive
// and are never driven. Output bit 0 is the failsafe relay.
type PinBoard struct {
	outputs [8]*model.GPIOPin

	inputs    []wiredInput
	inputPins []int
}

type wiredInput struct {
	pin model.GPIOPin
	bit signal.Mask
}

func NewPinBoard(inputs, outputs [8]*model.GPIOPin) *PinBoard {
	b := &PinBoard{outputs: outputs}
	for bit, p := range inputs {
		if p == nil {
			continue
		}
		b.inputs = append(b.inputs, wiredInput{pin: *p, bit: signal.Mask(1) << bit})
		b.inputPins = append(b.inputPins, p.Number)
	}
	return b
}

// Setup configures input pins and drives every output inactive.
func (b *PinBoard) Setup() error {
	if err := setPins(b.inputPins, "ip", "pn"); err != nil {
		return fmt.Errorf("configure inputs: %w", err)
	}
	return b.drive(0, true)
}

func (b *PinBoard) ReadInputs() (signal.Mask, error) {
	levels, err := readLevels(b.inputPins)
	if err != nil {
		return 0, err
	}
	var m signal.Mask
	for i, level := range levels {
		in := b.inputs[i]
		if level == in.pin.ActiveHigh {
			m |= in.bit
		}
	}
	return m, nil
}

func (b *PinBoard) WriteOutputs(m signal.Mask) error {
	return b.drive(m, false)
}

func (b *PinBoard) drive(m signal.Mask, force bool) error {
	if safeMode && !force {
		log.Debug().Uint8("outputs", uint8(m)).Msg("Safe mode, outputs not driven")
		return nil
	}
	var high, low []int
	for bit, p := range b.outputs {
		if p == nil {
			continue
		}
		active := m.Has(signal.Mask(1) << bit)
		if active == p.ActiveHigh {
			high = append(high, p.Number)
		} else {
			low = append(low, p.Number)
		}
	}
	if err := setPins(high, "op", "pn", "dh"); err != nil {
		return err
	}
	return setPins(low, "op", "pn", "dl")
}

// ReadSensorTemp reads a 1-wire sensor directory and returns Celsius x10.
var ReadSensorTemp = func(sensorPath string) (int16, error) {
	data, err := os.ReadFile(filepath.Join(sensorPath, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read sensor %s: %w", sensorPath, err)
	}
	return parseW1Slave(string(data))
}

func parseW1Slave(data string) (int16, error) {
	lines := strings.Split(data, "\n")
	if len(lines) < 2 || !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("sensor crc check failed")
	}
	_, value, ok := strings.Cut(lines[1], "t=")
	if !ok {
		return 0, fmt.Errorf("temperature data missing or malformed")
	}
	milliC, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("failed to convert temperature to int: %w", err)
	}
	return int16(milliC / 100), nil
}
