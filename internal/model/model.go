package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

type ModeType uint8

const (
	PassThrough ModeType = iota
	MapInputToOutput
	Heat
	Cool
	Auto

	NumModeTypes
)

var modeTypeNames = [...]string{"PASS", "MAP", "HEAT", "COOL", "AUTO"}

func (t ModeType) String() string {
	if t.Valid() {
		return modeTypeNames[t]
	}
	return fmt.Sprintf("TYPE%d", uint8(t))
}

func (t ModeType) Valid() bool { return t < NumModeTypes }

// SensorDriven reports whether the type ignores thermostat wires and runs
// from remote temperature reports.
func (t ModeType) SensorDriven() bool {
	return t == Heat || t == Cool || t == Auto
}

// ModeID names one configured instance of a mode type.
type ModeID struct {
	Type  ModeType
	Index uint8
}

func (id ModeID) String() string {
	return fmt.Sprintf("%s:%d", id.Type, id.Index)
}

const NameLength = 5

// Name is the fixed-width display name of a mode instance. Unused bytes are 0.
type Name [NameLength]byte

func NewName(s string) Name {
	var n Name
	copy(n[:], s)
	return n
}

func (n Name) String() string {
	return strings.TrimRight(string(n[:]), "\x00\xff")
}

// Settings layers. Each is encoded back to back in persisted records, so
// every field must be fixed size.

type BaseSettings struct {
	Name Name
}

type MapSettings struct {
	Table [signal.NumInputCombinations]signal.Mask
}

type SensorSettings struct {
	TargetCx10      int16
	ActivateCx10    int16
	SensorMask      uint32
	FanMask         signal.Mask
	AlwaysOnMask    signal.Mask
	Stage1          signal.Mask
	Stage2          signal.Mask
	Stage3          signal.Mask
	SecondsToStage2 uint16
	SecondsToStage3 uint16
}

// HumidityDisabled in CoolSettings.HumidityX10 turns dehumidify off.
const HumidityDisabled = 0xFFFF

type CoolSettings struct {
	DehumidifyOn  signal.Mask
	DehumidifyOff signal.Mask
	HumidityX10   uint16
}

type AutoSettings struct {
	HeatTargetCx10   int16
	HeatActivateCx10 int16
	HeatStage1       signal.Mask
	HeatStage2       signal.Mask
	HeatStage3       signal.Mask
}

// Settings is the working copy for the active instance. Only the layers
// belonging to the instance's type are persisted.
type Settings struct {
	Base   BaseSettings
	Map    MapSettings
	Sensor SensorSettings
	Cool   CoolSettings
	Auto   AutoSettings
}

// DefaultSettings is what a board with nothing selected runs.
func DefaultSettings() Settings {
	s := Settings{Base: BaseSettings{Name: NewName("PASS")}}
	s.Cool.HumidityX10 = HumidityDisabled
	for i := range s.Map.Table {
		s.Map.Table[i] = signal.Unset
	}
	return s
}

type CompressorConfig struct {
	Mask        signal.Mask
	HoldSeconds uint16
}

// Enabled is false for an unset (all 0xFF) or empty configuration.
func (c CompressorConfig) Enabled() bool {
	return c.Mask != 0 && c.Mask != signal.Unset && c.HoldSeconds != 0 && c.HoldSeconds != 0xFFFF
}

const NumHeatSafetyTriples = 3

type HeatSafetyTriple struct {
	DontCare  signal.Mask
	MustMatch signal.Mask
	ToClear   signal.Mask
}

// ClearedTriple never matches any output.
var ClearedTriple = HeatSafetyTriple{DontCare: signal.Unset, MustMatch: signal.Unset, ToClear: signal.Unset}

func (t HeatSafetyTriple) Matches(output signal.Mask) bool {
	return ^t.DontCare&output == t.MustMatch
}

// TriggerDisabled is the unset trigger temperature.
const TriggerDisabled int16 = -1

type HeatSafetyConfig struct {
	HoldSeconds uint16
	TriggerCx10 int16
	Triples     [NumHeatSafetyTriples]HeatSafetyTriple
}

type DisplayUnits uint8

const (
	Celsius    DisplayUnits = 0
	Fahrenheit DisplayUnits = 1
)

func (u DisplayUnits) String() string {
	if u == Fahrenheit {
		return "F"
	}
	return "C"
}

const (
	NumScheduleEntries = 16
	scheduleAutoOnly   = 0x80
)

// ScheduleEntry is four persisted bytes. The temperature is kept in half
// degree units. Days uses bit 0 for Sunday; bit 7 is the auto-only flag.
type ScheduleEntry struct {
	HalfDegrees int8
	Hour        uint8
	Minute      uint8
	Days        uint8
}

// Schedule targets are stored as signed half degrees.
const (
	ScheduleMinCx10 = -640
	ScheduleMaxCx10 = 635
)

var EmptyScheduleEntry = ScheduleEntry{HalfDegrees: -1, Hour: signal.Unset, Minute: signal.Unset, Days: signal.Unset}

func NewScheduleEntry(cx10 int16, hour, minute, days uint8, autoOnly bool) ScheduleEntry {
	e := ScheduleEntry{HalfDegrees: int8(cx10 / 5), Hour: hour, Minute: minute, Days: days &^ scheduleAutoOnly}
	if autoOnly {
		e.Days |= scheduleAutoOnly
	}
	return e
}

func (e ScheduleEntry) Empty() bool {
	return e.Hour > 23 || e.Minute > 59
}

func (e ScheduleEntry) TargetCx10() int16 { return int16(e.HalfDegrees) * 5 }

func (e ScheduleEntry) AutoOnly() bool { return e.Days&scheduleAutoOnly != 0 }

func (e ScheduleEntry) OnWeekday(day int) bool {
	return e.Days&(1<<uint(day)) != 0
}

const EncryptionKeyLength = 16

// RadioConfig is the link configuration for the packet radio.
type RadioConfig struct {
	NodeID        uint8
	NetworkID     uint8
	GatewayID     uint8
	FrequencyKHz  uint32
	EncryptionKey [EncryptionKeyLength]byte
}

func (r RadioConfig) Configured() bool {
	return r.NodeID != signal.Unset && r.NetworkID != signal.Unset
}

func (r RadioConfig) HasEncryptionKey() bool {
	return r.EncryptionKey[0] != signal.Unset
}

// SafetyEvent records a heat-safety shutdown starting or ending.
type SafetyEvent struct {
	ID        int64       `json:"id"`
	At        time.Time   `json:"at"`
	Kind      string      `json:"kind"`
	Triple    int         `json:"triple"`
	InletCx10 int16       `json:"inlet_cx10"`
	ToClear   signal.Mask `json:"to_clear"`
	Until     time.Time   `json:"until,omitempty"`
}

const (
	SafetyEventTrip  = "trip"
	SafetyEventClear = "clear"
)

// GPIOPin is one Raspberry Pi pin wired to a thermostat or furnace signal.
type GPIOPin struct {
	Number     int  `json:"pin"`
	ActiveHigh bool `json:"active_high"`
}
