package gpio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

func pin(n int, activeHigh bool) *model.GPIOPin {
	return &model.GPIOPin{Number: n, ActiveHigh: activeHigh}
}

func fakeBoard(t *testing.T) (*PinBoard, map[int]bool) {
	t.Helper()
	ResetGPIO()
	t.Cleanup(ResetGPIO)

	levels := map[int]bool{}
	MockGPIO(
		func(pin int, high bool) { levels[pin] = high },
		func(pin int) bool { return levels[pin] },
	)

	inputs := [8]*model.GPIOPin{pin(2, true), pin(3, true), pin(4, true), pin(17, false)}
	outputs := [8]*model.GPIOPin{pin(20, true), pin(21, false), nil, pin(22, true)}
	return NewPinBoard(inputs, outputs), levels
}

func TestReadInputs(t *testing.T) {
	b, levels := fakeBoard(t)

	levels[2] = true
	levels[4] = true
	levels[17] = false

	m, err := b.ReadInputs()
	require.NoError(t, err)
	assert.Equal(t, signal.R|signal.Z1|signal.W, m)
}

func TestWriteOutputs(t *testing.T) {
	b, levels := fakeBoard(t)
	require.NoError(t, b.Setup())
	assert.Equal(t, map[int]bool{2: false, 3: false, 4: false, 17: false, 20: false, 21: true, 22: false}, levels)

	require.NoError(t, b.WriteOutputs(signal.Failsafe|signal.Z2|signal.W))
	assert.True(t, levels[20])
	assert.False(t, levels[21], "active low")
	assert.True(t, levels[22])
}

func TestSafeModeSkipsWrites(t *testing.T) {
	b, levels := fakeBoard(t)
	SetSafeMode(true)

	require.NoError(t, b.WriteOutputs(signal.W))
	_, driven := levels[22]
	assert.False(t, driven)
}

func TestParseW1Slave(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int16
		wantErr bool
	}{
		{"positive", "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n", 231, false},
		{"negative", "ff ff : crc=00 YES\nff ff t=-1250\n", -12, false},
		{"bad crc", "72 01 : crc=57 NO\n72 01 t=23125\n", 0, true},
		{"missing value", "72 01 : crc=57 YES\n72 01\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseW1Slave(tc.data)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReadSensorTemp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "w1_slave"), []byte("aa : crc=aa YES\naa t=19875\n"), 0o644))

	got, err := ReadSensorTemp(dir)
	require.NoError(t, err)
	assert.Equal(t, int16(198), got)

	_, err = ReadSensorTemp(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDebouncer(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := func(n int) time.Time { return start.Add(time.Duration(n) * time.Millisecond) }
	d := NewDebouncer(100*time.Millisecond, 250*time.Millisecond)

	assert.Equal(t, signal.W, d.Update(signal.W, ms(0)), "active immediately")
	assert.Equal(t, signal.W, d.Update(0, ms(50)))
	assert.Equal(t, signal.W, d.Update(0, ms(99)))
	assert.Equal(t, signal.Z1, d.Update(signal.Z1, ms(100)), "dropped once missing for the whole window")
	assert.Equal(t, signal.Z1, d.State())
}

func TestDebouncerLongIterationExtendsWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := func(n int) time.Time { return start.Add(time.Duration(n) * time.Millisecond) }
	d := NewDebouncer(100*time.Millisecond, 250*time.Millisecond)

	d.Update(signal.W, ms(0))
	assert.Equal(t, signal.W, d.Update(0, ms(400)), "stalled poll does not drop the signal")
	assert.Equal(t, signal.W, d.Update(0, ms(450)))
	assert.Equal(t, signal.Mask(0), d.Update(0, ms(500)))
}
