// Package command dispatches protocol lines. Radio link settings are tried
// first, then the generic thermostat commands, both only when the line is
// addressed to this node. Whatever is left goes to the active mode, which
// also sees packets addressed elsewhere so it can listen to sensors.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/modecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
)

// Safety receives lockout and heat-safety configuration as it changes.
type Safety interface {
	SetCompressor(model.CompressorConfig)
	SetHeatSafety(model.HeatSafetyConfig)
}

type Clock interface {
	Set(time.Time)
}

// Display is the reporting side: labels and units for rendering, and
// requests for immediate output.
type Display interface {
	SetLabels(signal.Labels)
	SetUnits(model.DisplayUnits)
	RequestReport()
	Diagnostic(line string)
}

// Radio is told when the link configuration changes.
type Radio interface {
	Reconfigure(model.RadioConfig)
}

type Interpreter struct {
	store   *store.Store
	modes   *modecontroller.Controller
	safety  Safety
	clock   Clock
	display Display
	radio   Radio
}

func New(st *store.Store, modes *modecontroller.Controller, safety Safety, clock Clock, display Display, radio Radio) *Interpreter {
	return &Interpreter{store: st, modes: modes, safety: safety, clock: clock, display: display, radio: radio}
}

// Process runs cmd through the dispatch stages and reports whether any
// stage handled it. Unhandled lines have no other effect.
func (in *Interpreter) Process(cmd protocol.Command, now time.Time) bool {
	cmd.Text = strings.TrimRight(cmd.Text, " \r\n\x00")
	if cmd.Text == "" {
		return false
	}

	handled := false
	if cmd.ToMe {
		handled = in.radioCommand(cmd.Text) || in.generic(cmd.Text) || in.modes.ProcessCommand(cmd)
	}
	if !handled {
		handled = in.modes.Active().ProcessCommand(cmd, now)
	}

	log.Debug().
		Str("source", cmd.Source.String()).
		Uint8("sender", cmd.SenderID).
		Bool("to_me", cmd.ToMe).
		Str("text", cmd.Text).
		Bool("handled", handled).
		Msg("Command processed")
	return handled
}

func (in *Interpreter) generic(text string) bool {
	switch {
	case strings.HasPrefix(text, "T="):
		return in.setClock(text[2:])
	case strings.HasPrefix(text, "HV "):
		return in.setLabels(text[3:])
	case strings.HasPrefix(text, "COMPRESSOR=0x"):
		return in.setCompressor(text[len("COMPRESSOR=0x"):])
	case strings.HasPrefix(text, "DU="):
		return in.setUnits(text[3:])
	case text == "RH":
		in.display.RequestReport()
		return true
	case strings.HasPrefix(text, "HS "):
		return in.setHeatSafety(text[3:])
	case strings.HasPrefix(text, "SE "):
		return in.setScheduleEntry(text[3:])
	}
	return false
}

// setClock parses "YYYY MM DD HH MM SS DOW". The weekday follows from the
// date, so the trailing day-of-week field is accepted and ignored.
func (in *Interpreter) setClock(args string) bool {
	var year uint16
	var month, day, hour, minute, second uint8
	sc := protocol.NewScanner(args)
	if !(sc.Uint16(&year) && sc.Uint8(&month) && sc.Uint8(&day) && sc.Uint8(&hour) && sc.Uint8(&minute) && sc.Uint8(&second)) {
		return false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return false
	}
	t := time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.Local)
	in.clock.Set(t)
	log.Info().Time("time", t).Msg("Clock set")
	return true
}

func (in *Interpreter) setLabels(args string) bool {
	labels, err := in.store.Labels()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read wire labels")
	}
	for i, name := range strings.Fields(args) {
		if i >= len(labels) {
			break
		}
		if len(name) > signal.LabelLength {
			name = name[:signal.LabelLength]
		}
		labels[i] = name
	}
	if err := in.store.SetLabels(labels); err != nil {
		log.Error().Err(err).Msg("Failed to save wire labels")
	}
	in.display.SetLabels(labels)
	return true
}

// setCompressor parses "<mask> <seconds>" following "COMPRESSOR=0x".
func (in *Interpreter) setCompressor(args string) bool {
	c, err := in.store.Compressor()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read compressor config")
	}
	sc := protocol.NewScanner(args)
	if !sc.HexMask(&c.Mask) {
		return false
	}
	sc.Uint16(&c.HoldSeconds)
	if sc.Err() != nil {
		return false
	}
	if err := in.store.SetCompressor(c); err != nil {
		log.Error().Err(err).Msg("Failed to save compressor config")
	}
	in.safety.SetCompressor(c)
	log.Info().Uint8("mask", uint8(c.Mask)).Uint16("hold_seconds", c.HoldSeconds).Msg("Compressor lockout configured")
	return true
}

func (in *Interpreter) setUnits(args string) bool {
	var u model.DisplayUnits
	switch args {
	case "F", "f":
		u = model.Fahrenheit
	case "C", "c":
		u = model.Celsius
	default:
		return false
	}
	if err := in.store.SetUnits(u); err != nil {
		log.Error().Err(err).Msg("Failed to save display units")
	}
	in.display.SetUnits(u)
	return true
}

// setHeatSafety handles "C <Cx10>", "T <seconds>" and
// "<1-3> <dontCare> <mustMatch> <toClear>". A triple with no masks is
// cleared.
func (in *Interpreter) setHeatSafety(args string) bool {
	cfg, err := in.store.HeatSafety()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read heat-safety config")
	}
	sc := protocol.NewScanner(args)
	var which string
	if !sc.Word(&which) {
		return false
	}

	switch which {
	case "C":
		if !sc.Int16(&cfg.TriggerCx10) {
			return false
		}
	case "T":
		if !sc.Uint16(&cfg.HoldSeconds) {
			return false
		}
	case "1", "2", "3":
		i := int(which[0] - '1')
		if !sc.More() {
			cfg.Triples[i] = model.ClearedTriple
			break
		}
		triple := &cfg.Triples[i]
		sc.HexMask(&triple.DontCare)
		sc.HexMask(&triple.MustMatch)
		sc.HexMask(&triple.ToClear)
		if sc.Err() != nil {
			return false
		}
	default:
		return false
	}

	if err := in.store.SetHeatSafety(cfg); err != nil {
		log.Error().Err(err).Msg("Failed to save heat-safety config")
	}
	in.safety.SetHeatSafety(cfg)
	return true
}

// setScheduleEntry parses "<idx> <Cx10> <hour> <min> <dowMask> <autoOnly>".
// Anything short of the day mask clears the slot.
func (in *Interpreter) setScheduleEntry(args string) bool {
	sc := protocol.NewScanner(args)
	var idx uint8
	if !sc.Uint8(&idx) || int(idx) >= model.NumScheduleEntries {
		return false
	}

	var (
		cx10         int16
		hour, minute uint8
		days         uint8
		autoOnly     uint8
	)
	entry := model.EmptyScheduleEntry
	if sc.Int16(&cx10) && sc.Uint8(&hour) && sc.Uint8(&minute) && sc.HexUint8(&days) {
		sc.Uint8(&autoOnly)
		if hour > 23 || minute > 59 || cx10 < model.ScheduleMinCx10 || cx10 > model.ScheduleMaxCx10 {
			return false
		}
		entry = model.NewScheduleEntry(cx10, hour, minute, days, autoOnly != 0)
	}
	if sc.Err() != nil {
		return false
	}

	if err := in.store.SetScheduleEntry(int(idx), entry); err != nil {
		log.Error().Err(err).Msg("Failed to save schedule entry")
	}
	return true
}

// radioCommand handles the link configuration keywords. Changes are
// persisted and handed to the radio bridge.
func (in *Interpreter) radioCommand(text string) bool {
	if text == "I" {
		r, err := in.store.Radio()
		if err != nil {
			log.Error().Err(err).Msg("Failed to read radio config")
			return true
		}
		in.display.Diagnostic(describeRadio(r))
		return true
	}

	r, err := in.store.Radio()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read radio config")
	}

	switch {
	case strings.HasPrefix(text, "NodeId="):
		if !protocol.NewScanner(text[len("NodeId="):]).Uint8(&r.NodeID) {
			return false
		}
	case strings.HasPrefix(text, "NetworkId="):
		if !protocol.NewScanner(text[len("NetworkId="):]).Uint8(&r.NetworkID) {
			return false
		}
	case strings.HasPrefix(text, "GatewayId="):
		if !protocol.NewScanner(text[len("GatewayId="):]).Uint8(&r.GatewayID) {
			return false
		}
	case strings.HasPrefix(text, "FrequencyKHz="):
		if !protocol.NewScanner(text[len("FrequencyKHz="):]).Uint32(&r.FrequencyKHz) {
			return false
		}
	case strings.HasPrefix(text, "EncryptionKey="):
		key := text[len("EncryptionKey="):]
		if len(key) != model.EncryptionKeyLength {
			return false
		}
		copy(r.EncryptionKey[:], key)
	case text == "EncryptionKeyClear":
		for i := range r.EncryptionKey {
			r.EncryptionKey[i] = signal.Unset
		}
	default:
		return false
	}

	if err := in.store.SetRadio(r); err != nil {
		log.Error().Err(err).Msg("Failed to save radio config")
	}
	in.radio.Reconfigure(r)
	log.Info().
		Uint8("node_id", r.NodeID).
		Uint8("network_id", r.NetworkID).
		Uint8("gateway_id", r.GatewayID).
		Uint32("frequency_khz", r.FrequencyKHz).
		Msg("Radio configured")
	return true
}

func describeRadio(r model.RadioConfig) string {
	key := "none"
	if r.HasEncryptionKey() {
		key = "set"
	}
	return fmt.Sprintf("NodeId=%d NetworkId=%d GatewayId=%d FrequencyKHz=%d Key=%s",
		r.NodeID, r.NetworkID, r.GatewayID, r.FrequencyKHz, key)
}
