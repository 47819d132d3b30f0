// Package signal describes the 8-bit layout shared by the thermostat input
// wires and the furnace output wires.
package signal

import "strings"

// Mask is one bit per 24VAC wire. Bit 0 doubles as the R-active input and
// the failsafe relay output.
type Mask uint8

const (
	BitFailsafe = 0
	BitR        = 0
	BitZ2       = 1
	BitZ1       = 2
	BitW        = 3
	BitZX       = 4
	BitX2       = 5
	BitX1       = 6
	BitX3       = 7

	// FirstSignal is the lowest bit that carries a thermostat call.
	FirstSignal = BitZ2
)

const (
	Failsafe Mask = 1 << BitFailsafe
	R        Mask = 1 << BitR
	Z2       Mask = 1 << BitZ2
	Z1       Mask = 1 << BitZ1
	W        Mask = 1 << BitW
	ZX       Mask = 1 << BitZX
	X2       Mask = 1 << BitX2
	X1       Mask = 1 << BitX1
	X3       Mask = 1 << BitX3

	InputLegal  Mask = Z2 | Z1 | W | ZX | X2 | X1 | R
	OutputLegal Mask = Z2 | Z1 | W | ZX | X2 | X1 | X3

	NumInputSignals      = 6
	NumInputCombinations = 1 << NumInputSignals

	// Unset is the all-bits-set sentinel used throughout persisted storage.
	Unset = 0xFF
)

// Input restricts m to the bits a thermostat may drive.
func (m Mask) Input() Mask { return m & InputLegal }

// Output restricts m to the bits the board may drive toward the furnace.
func (m Mask) Output() Mask { return m & OutputLegal }

func (m Mask) Has(bits Mask) bool { return m&bits != 0 }

// TableIndex converts an input mask to its 0-63 position in the remapping
// table: R is dropped and the six call wires are shifted down.
func TableIndex(inputs Mask) uint8 {
	return uint8(inputs.Input() >> FirstSignal)
}

// FromTableIndex is the inverse of TableIndex for the six call wires.
func FromTableIndex(idx uint8) Mask {
	return Mask(idx<<FirstSignal) & InputLegal
}

// LabelLength is the number of characters stored per wire label.
const LabelLength = 2

// Labels names each bit position for reports, low bit first.
type Labels [8]string

// DefaultLabels are the board silk-screen names.
var DefaultLabels = Labels{"R", "Z2", "Z1", "W", "ZX", "X2", "X1", "X3"}

// Active renders the labels of the set bits in m, low bit first, joined by
// commas. Unlabeled bits render as their bit number.
func (l Labels) Active(m Mask) string {
	var parts []string
	for bit := 0; bit < 8; bit++ {
		if m&(1<<bit) == 0 {
			continue
		}
		name := strings.TrimSpace(l[bit])
		if name == "" {
			name = string(rune('0' + bit))
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ",")
}
