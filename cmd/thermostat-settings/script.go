package main

import (
	"fmt"
	"strings"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// Wire assignment for a typical heat pump with a gas furnace backup.
// R and C are 24VAC and common.
const (
	maskW  = signal.W
	maskY  = signal.X2
	maskY2 = signal.Z2
	maskG  = signal.Z1
	maskDH = signal.ZX

	compressorHoldSeconds = 5 * 60
	secondsToStage2Heat   = 15 * 60
)

type Install struct {
	Sensors []int
	// BWire switches the reversing valve from O (energized to cool) to B
	// (energized to heat).
	BWire bool
	// Stage3Delay is added to the stage-2 delay of the HEAT mode.
	Stage3Delay int
}

func (in Install) reversingValve() (o, b signal.Mask) {
	if in.BWire {
		return 0, signal.X1
	}
	return signal.X1, 0
}

func (in Install) sensorMask() uint32 {
	var m uint32
	for _, s := range in.Sensors {
		if s >= 0 && s < 32 {
			m |= 1 << s
		}
	}
	return m
}

// noHeatPumpMap passes inputs through, except that a compressor call in
// heating is moved to the furnace.
func (in Install) noHeatPumpMap() [signal.NumInputCombinations]signal.Mask {
	o, b := in.reversingValve()
	compressor := maskY | maskY2
	var table [signal.NumInputCombinations]signal.Mask
	for i := range table {
		item := signal.FromTableIndex(uint8(i))
		if item&compressor != 0 && item&o == 0 && item&b == b {
			item = item&^compressor | maskW
		}
		table[i] = item
	}
	return table
}

// Script is the command sequence that installs the configuration.
func (in Install) Script() []string {
	o, b := in.reversingValve()
	sensors := in.sensorMask()

	wires := "HV R Y2 G W d Y O"
	if in.BWire {
		wires = "HV R Y2 G W d Y B"
	}
	lines := []string{
		wires,
		fmt.Sprintf("COMPRESSOR=0x%x %d", uint8(maskY|maskY2), compressorHoldSeconds),
		"HVAC TYPE=0 MODE=0",
		"HVAC NAME=PasT",
		"HVAC COMMIT",

		"HVAC TYPE=1 COUNT=1",
		"HVAC TYPE=1 MODE=0",
		"HVAC NAME=NoHP",
	}

	table := in.noHeatPumpMap()
	for addr := 0; addr < len(table); addr += 8 {
		values := make([]string, 8)
		for i := range values {
			values[i] = fmt.Sprintf("%x", uint8(table[addr+i]))
		}
		lines = append(lines, fmt.Sprintf("HVACMAP=0x%x %s", addr, strings.Join(values, " ")))
	}
	lines = append(lines, "HVAC COMMIT")

	lines = append(lines,
		"HVAC TYPE=2 COUNT=2",
		"HVAC TYPE=2 MODE=0",
		"HVAC NAME=HEAT",
		sensorSettings("1 0", sensors, maskG,
			b|maskDH,
			b|maskY|maskG|maskDH,
			b|maskY|maskY2|maskG|maskDH,
			b|maskW|maskDH,
			secondsToStage2Heat, secondsToStage2Heat+in.Stage3Delay),
		"HVAC COMMIT",

		"HVAC TYPE=2 MODE=1",
		"HVAC NAME=wHEAT",
		// The long stage-3 delay doubles as the sensor silence timeout.
		sensorSettings("1 0", sensors, maskG,
			maskDH,
			maskW|maskDH,
			maskW|maskDH,
			maskW|maskDH,
			10, 20*60),
		"HVAC COMMIT",

		"HVAC TYPE=3 COUNT=1",
		"HVAC TYPE=3 MODE=0",
		"HVAC NAME=COOL",
		sensorSettings("400 410", sensors, maskG,
			o|maskDH,
			o|maskDH|maskY|maskG,
			o|maskDH|maskY2|maskY|maskG,
			o|maskDH|maskY2|maskY|maskG,
			1200, 9999),
		fmt.Sprintf("HUM_SETTINGS 600 0 %x", uint8(maskDH)),
		"HVAC COMMIT",

		"HS T 300",
		"HS C 322",
		heatSafety(1, ^maskW, maskW, maskY|maskY2|maskW),
		heatSafety(2, ^(maskY|o|b), maskY|b, maskY|maskY2|maskW),
		"HS 3",
	)

	for i := 0; i < model.NumScheduleEntries; i++ {
		lines = append(lines, fmt.Sprintf("SE %d", i))
	}
	return lines
}

func sensorSettings(temps string, sensors uint32, fan, always, s1, s2, s3 signal.Mask, toStage2, toStage3 int) string {
	return fmt.Sprintf("HVAC_SETTINGS %s %x %x %x %x %x %x %d %d",
		temps, sensors, uint8(fan), uint8(always), uint8(s1), uint8(s2), uint8(s3), toStage2, toStage3)
}

func heatSafety(triple int, dontCare, mustMatch, toClear signal.Mask) string {
	return fmt.Sprintf("HS %d %x %x %x", triple, uint8(dontCare), uint8(mustMatch), uint8(toClear))
}
