package modes

import (
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

const (
	mapCommand = "HVACMAP=0x"
	// mapValuesPerCommand bounds one HVACMAP line to what fits a command
	// buffer.
	mapValuesPerCommand = 8
)

type mapInputToOutput struct {
	settings *model.Settings
	out      Outputs
	inputs   signal.Mask
}

func (m *mapInputToOutput) Type() model.ModeType { return model.MapInputToOutput }

func (m *mapInputToOutput) Name() string { return m.settings.Base.Name.String() }

// Evaluate looks up the output for inputs. An unset entry passes the call
// wires straight through.
func (m *mapInputToOutput) Evaluate(inputs signal.Mask) signal.Mask {
	idx := signal.TableIndex(inputs)
	v := m.settings.Map.Table[idx]
	if v == signal.Unset {
		return signal.FromTableIndex(idx)
	}
	return v
}

func (m *mapInputToOutput) OnInputsChanged(inputs, _ signal.Mask) {
	m.inputs = inputs
	m.out.Update(m.Evaluate(inputs))
}

// ProcessCommand handles "HVACMAP=0x<addr> v1 .. v8", all hex. A write past
// the end of the table rejects the command; entries already written stay.
func (m *mapInputToOutput) ProcessCommand(cmd protocol.Command, _ time.Time) bool {
	if !cmd.ToMe || len(cmd.Text) < len(mapCommand) || cmd.Text[:len(mapCommand)] != mapCommand {
		return false
	}
	sc := protocol.NewScanner(cmd.Text[len(mapCommand):])
	var addr uint8
	if !sc.HexUint8(&addr) {
		return false
	}
	for i := 0; i < mapValuesPerCommand; i++ {
		var v signal.Mask
		if !sc.HexMask(&v) {
			break
		}
		if int(addr) >= signal.NumInputCombinations {
			return false
		}
		m.settings.Map.Table[addr] = v
		addr++
	}
	if sc.Err() != nil {
		return false
	}
	m.out.Update(m.Evaluate(m.inputs))
	return true
}

func (m *mapInputToOutput) TargetAndActual() (int16, int16, bool) { return 0, 0, false }

func (m *mapInputToOutput) Tick(time.Time) {}

func (m *mapInputToOutput) TurnOff() { m.out.Update(0) }
