package store

import (
	"encoding/binary"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Capacity is the size of the non-volatile image in bytes.
const Capacity = 1024

var byteOrder = binary.LittleEndian

// Persisted regions, in order.
var (
	RadioAddr      = 0
	LabelsAddr     = RadioAddr + binary.Size(model.RadioConfig{})
	UnitsAddr      = LabelsAddr + len(signal.Labels{})*signal.LabelLength
	CompressorAddr = UnitsAddr + 1
	HeatSafetyAddr = CompressorAddr + binary.Size(model.CompressorConfig{})
	ScheduleAddr   = HeatSafetyAddr + binary.Size(model.HeatSafetyConfig{})
	SelectionAddr  = ScheduleAddr + model.NumScheduleEntries*binary.Size(model.ScheduleEntry{})
	CountsAddr     = SelectionAddr + 2
	ModesAddr      = CountsAddr + int(model.NumModeTypes-1)
)

// layers lists the settings groups persisted for t, in record order.
func layers(t model.ModeType, s *model.Settings) []any {
	switch t {
	case model.PassThrough:
		return []any{&s.Base}
	case model.MapInputToOutput:
		return []any{&s.Base, &s.Map}
	case model.Heat:
		return []any{&s.Base, &s.Sensor}
	case model.Cool:
		return []any{&s.Base, &s.Sensor, &s.Cool}
	case model.Auto:
		return []any{&s.Base, &s.Sensor, &s.Cool, &s.Auto}
	}
	return nil
}

var recordSizes [model.NumModeTypes]int

func init() {
	var s model.Settings
	for t := model.PassThrough; t < model.NumModeTypes; t++ {
		for _, l := range layers(t, &s) {
			recordSizes[t] += binary.Size(l)
		}
	}
}

// RecordSize is the persisted size of one instance of t.
func RecordSize(t model.ModeType) int {
	if !t.Valid() {
		return 0
	}
	return recordSizes[t]
}
