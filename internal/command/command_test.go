package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/internal/controllers/modecontroller"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
)

type outputs struct{ mask signal.Mask }

func (o *outputs) Update(m signal.Mask) { o.mask = m }
func (o *outputs) Set(b signal.Mask)    { o.mask |= b }
func (o *outputs) Clear(b signal.Mask)  { o.mask &^= b }

type fakeSafety struct {
	compressor model.CompressorConfig
	heatSafety model.HeatSafetyConfig
}

func (f *fakeSafety) SetCompressor(c model.CompressorConfig) { f.compressor = c }
func (f *fakeSafety) SetHeatSafety(c model.HeatSafetyConfig) { f.heatSafety = c }

type fakeClock struct{ set []time.Time }

func (f *fakeClock) Set(t time.Time) { f.set = append(f.set, t) }

type fakeDisplay struct {
	labels      signal.Labels
	units       model.DisplayUnits
	reports     int
	diagnostics []string
}

func (f *fakeDisplay) SetLabels(l signal.Labels)     { f.labels = l }
func (f *fakeDisplay) SetUnits(u model.DisplayUnits) { f.units = u }
func (f *fakeDisplay) RequestReport()                { f.reports++ }
func (f *fakeDisplay) Diagnostic(line string)        { f.diagnostics = append(f.diagnostics, line) }

type fakeRadio struct{ configs []model.RadioConfig }

func (f *fakeRadio) Reconfigure(r model.RadioConfig) { f.configs = append(f.configs, r) }

type fixture struct {
	in      *Interpreter
	st      *store.Store
	modes   *modecontroller.Controller
	out     *outputs
	safety  *fakeSafety
	clock   *fakeClock
	display *fakeDisplay
	radio   *fakeRadio
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:      store.New(store.NewImage()),
		out:     &outputs{},
		safety:  &fakeSafety{},
		clock:   &fakeClock{},
		display: &fakeDisplay{},
		radio:   &fakeRadio{},
	}
	f.modes = modecontroller.New(f.st, f.out)
	f.modes.Setup()
	f.in = New(f.st, f.modes, f.safety, f.clock, f.display, f.radio)
	return f
}

func (f *fixture) send(text string) bool {
	return f.in.Process(protocol.Command{Text: text, ToMe: true, Source: protocol.SourceSerial}, now)
}

func TestUnknownCommandIsNotHandled(t *testing.T) {
	f := setup(t)
	assert.False(t, f.send("BOGUS"))
	assert.False(t, f.send(""))
	assert.False(t, f.send("\r\n"))
}

func TestSetClock(t *testing.T) {
	f := setup(t)
	require.True(t, f.send("T=2026 10 19 07 30 15 1"))
	require.Len(t, f.clock.set, 1)
	got := f.clock.set[0]
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.October, got.Month())
	assert.Equal(t, 19, got.Day())
	assert.Equal(t, 7, got.Hour())
	assert.Equal(t, 30, got.Minute())
	assert.Equal(t, 15, got.Second())

	assert.False(t, f.send("T=2026 13 19 07 30 15 1"))
	assert.False(t, f.send("T=2026 10"))
	assert.Len(t, f.clock.set, 1)
}

func TestWireLabels(t *testing.T) {
	f := setup(t)
	require.True(t, f.send("HV R Y2 G W DH Y OBX"))

	want := signal.Labels{"R", "Y2", "G", "W", "DH", "Y", "OB", "X3"}
	assert.Equal(t, want, f.display.labels)
	stored, err := f.st.Labels()
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

func TestCompressor(t *testing.T) {
	f := setup(t)
	require.True(t, f.send("COMPRESSOR=0x22 300"))

	want := model.CompressorConfig{Mask: signal.X2 | signal.Z2, HoldSeconds: 300}
	assert.Equal(t, want, f.safety.compressor)
	stored, err := f.st.Compressor()
	require.NoError(t, err)
	assert.Equal(t, want, stored)

	require.True(t, f.send("COMPRESSOR=0x20"))
	assert.Equal(t, model.CompressorConfig{Mask: signal.X2, HoldSeconds: 300}, f.safety.compressor)

	assert.False(t, f.send("COMPRESSOR=0xZZ 300"))
}

func TestDisplayUnits(t *testing.T) {
	f := setup(t)
	require.True(t, f.send("DU=F"))
	assert.Equal(t, model.Fahrenheit, f.display.units)
	u, err := f.st.Units()
	require.NoError(t, err)
	assert.Equal(t, model.Fahrenheit, u)

	require.True(t, f.send("DU=C"))
	assert.Equal(t, model.Celsius, f.display.units)
	assert.False(t, f.send("DU=K"))
}

func TestReportRequest(t *testing.T) {
	f := setup(t)
	require.True(t, f.send("RH"))
	assert.Equal(t, 1, f.display.reports)
}

func TestHeatSafety(t *testing.T) {
	f := setup(t)

	require.True(t, f.send("HS T 300"))
	require.True(t, f.send("HS C 322"))
	require.True(t, f.send("HS 1 f7 8 2a"))
	require.True(t, f.send("HS 2 0x9f 0x60 0x2a"))
	require.True(t, f.send("HS 3"))

	cfg := f.safety.heatSafety
	assert.Equal(t, uint16(300), cfg.HoldSeconds)
	assert.Equal(t, int16(322), cfg.TriggerCx10)
	assert.Equal(t, model.HeatSafetyTriple{DontCare: 0xf7, MustMatch: 0x08, ToClear: 0x2a}, cfg.Triples[0])
	assert.Equal(t, model.HeatSafetyTriple{DontCare: 0x9f, MustMatch: 0x60, ToClear: 0x2a}, cfg.Triples[1])
	assert.Equal(t, model.ClearedTriple, cfg.Triples[2])

	stored, err := f.st.HeatSafety()
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)

	assert.False(t, f.send("HS 4 1 2 3"))
	assert.False(t, f.send("HS C"))
	assert.False(t, f.send("HS"))
}

func TestScheduleEntry(t *testing.T) {
	f := setup(t)

	require.True(t, f.send("SE 3 205 6 30 3e 0"))
	e, err := f.st.ScheduleEntry(3)
	require.NoError(t, err)
	assert.False(t, e.Empty())
	assert.Equal(t, int16(205), e.TargetCx10())
	assert.Equal(t, uint8(6), e.Hour)
	assert.Equal(t, uint8(30), e.Minute)
	assert.True(t, e.OnWeekday(int(time.Monday)))
	assert.False(t, e.OnWeekday(int(time.Sunday)))
	assert.False(t, e.AutoOnly())

	require.True(t, f.send("SE 4 180 22 0 7f 1"))
	e, err = f.st.ScheduleEntry(4)
	require.NoError(t, err)
	assert.True(t, e.AutoOnly())

	require.True(t, f.send("SE 3"))
	e, err = f.st.ScheduleEntry(3)
	require.NoError(t, err)
	assert.True(t, e.Empty())

	assert.False(t, f.send("SE 16 200 6 0 7f"))
	assert.False(t, f.send("SE 5 200 24 0 7f"))
	assert.False(t, f.send("SE 5 200 6 60 7f"))

	for _, cx10 := range []string{"636", "700", "-641", "-700"} {
		assert.False(t, f.send("SE 5 "+cx10+" 6 0 7f"), cx10)
	}
	e, err = f.st.ScheduleEntry(5)
	require.NoError(t, err)
	assert.True(t, e.Empty(), "rejected temperatures leave the slot untouched")

	require.True(t, f.send("SE 5 635 6 0 7f"))
	e, err = f.st.ScheduleEntry(5)
	require.NoError(t, err)
	assert.Equal(t, int16(635), e.TargetCx10())
	require.True(t, f.send("SE 6 -640 6 0 7f"))
	e, err = f.st.ScheduleEntry(6)
	require.NoError(t, err)
	assert.Equal(t, int16(-640), e.TargetCx10())
}

func TestRadioConfiguration(t *testing.T) {
	f := setup(t)

	require.True(t, f.send("NodeId=3"))
	require.True(t, f.send("NetworkId=100"))
	require.True(t, f.send("GatewayId=1"))
	require.True(t, f.send("FrequencyKHz=915000"))
	require.True(t, f.send("EncryptionKey=0123456789abcdef"))

	r, err := f.st.Radio()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), r.NodeID)
	assert.Equal(t, uint8(100), r.NetworkID)
	assert.Equal(t, uint8(1), r.GatewayID)
	assert.Equal(t, uint32(915000), r.FrequencyKHz)
	assert.True(t, r.HasEncryptionKey())
	require.Len(t, f.radio.configs, 5)
	assert.Equal(t, r, f.radio.configs[4])

	assert.False(t, f.send("EncryptionKey=short"))

	require.True(t, f.send("EncryptionKeyClear"))
	r, err = f.st.Radio()
	require.NoError(t, err)
	assert.False(t, r.HasEncryptionKey())

	require.True(t, f.send("I"))
	require.Len(t, f.display.diagnostics, 1)
	assert.Contains(t, f.display.diagnostics[0], "NodeId=3")
	assert.Contains(t, f.display.diagnostics[0], "Key=none")
}

func TestGenericCommandsRequireAddressing(t *testing.T) {
	f := setup(t)
	notMine := func(text string) bool {
		return f.in.Process(protocol.Command{Text: text, SenderID: 9, Source: protocol.SourceRadio}, now)
	}

	assert.False(t, notMine("DU=F"))
	assert.False(t, notMine("NodeId=7"))
	assert.False(t, notMine("HVAC TYPE=2 COUNT=1"))
	assert.Equal(t, model.DisplayUnits(0), f.display.units)
	assert.Empty(t, f.radio.configs)
	n, err := f.st.Count(model.Heat)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestModeCommandsAndFallThrough(t *testing.T) {
	f := setup(t)

	require.True(t, f.send("HVAC TYPE=2 COUNT=1"))
	require.True(t, f.send("HVAC TYPE=2 MODE=0"))
	assert.Equal(t, model.Heat, f.modes.ID().Type)

	require.True(t, f.send("HVAC_SETTINGS 200 194 4"), "reaches the active mode")
	assert.Equal(t, int16(200), f.modes.Settings().Sensor.TargetCx10)

	// Sensor reports are sniffed even when addressed elsewhere.
	require.True(t, f.in.Process(protocol.Command{Text: "C:1769, B:198, T:+18.04", SenderID: 2, Source: protocol.SourceRadio}, now))
	target, actual, ok := f.modes.Active().TargetAndActual()
	require.True(t, ok)
	assert.Equal(t, int16(200), target)
	assert.Equal(t, int16(180), actual)
}
