package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

func TestReportValue(t *testing.T) {
	tests := []struct {
		name   string
		report string
		key    string
		want   int16
		ok     bool
	}{
		{"positive with sign", "C:1769, B:198, T:+20.58 R:45.46", "T:", 205, true},
		{"humidity", "C:1769, B:198, T:+20.58 R:45.46", "R:", 454, true},
		{"negative", "T:-1.57", "T:", -15, true},
		{"no fraction", "T:21", "T:", 210, true},
		{"missing", "C:1769, B:198", "T:", 0, false},
		{"no digits", "T:+", "T:", 0, false},
		{"overflow", "T:99999", "T:", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ReportValue(tt.report, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasPrefixFold(t *testing.T) {
	assert.True(t, HasPrefixFold("hvac type=2", "HVAC "))
	assert.False(t, HasPrefixFold("HVAC_SETTINGS 1", "HVAC "))
	assert.False(t, HasPrefixFold("HV", "HVAC "))
}

func TestScannerOptionalTrailingFields(t *testing.T) {
	var (
		target   int16 = 100
		activate int16 = 94
		mask     uint32
		fan      signal.Mask = 0x04
		secs     uint16      = 900
	)
	sc := NewScanner(" 205  199 0x300 ")
	assert.True(t, sc.Int16(&target))
	assert.True(t, sc.Int16(&activate))
	assert.True(t, sc.HexUint32(&mask))
	assert.False(t, sc.HexMask(&fan))
	assert.False(t, sc.Uint16(&secs))
	require.NoError(t, sc.Err())

	assert.Equal(t, int16(205), target)
	assert.Equal(t, int16(199), activate)
	assert.Equal(t, uint32(0x300), mask)
	assert.Equal(t, signal.Mask(0x04), fan, "omitted field unchanged")
	assert.Equal(t, uint16(900), secs)
}

func TestScannerStopsAtMalformedField(t *testing.T) {
	var a, b, c int16 = 1, 2, 3
	sc := NewScanner("10 x1 30")
	assert.True(t, sc.Int16(&a))
	assert.False(t, sc.Int16(&b))
	assert.False(t, sc.Int16(&c))
	assert.Error(t, sc.Err())
	assert.Equal(t, []int16{10, 2, 3}, []int16{a, b, c})

	var m uint8
	sc = NewScanner("1FF")
	assert.False(t, sc.HexUint8(&m), "out of range for a byte")
	assert.Error(t, sc.Err())
}

func TestQueue(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Enqueue(Command{Text: "RH"}))
	assert.True(t, q.Enqueue(Command{Text: "DU=F"}))
	assert.False(t, q.Enqueue(Command{Text: "dropped"}))

	cmd, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, "RH", cmd.Text)
	cmd, ok = q.Poll()
	require.True(t, ok)
	assert.Equal(t, "DU=F", cmd.Text)
	_, ok = q.Poll()
	assert.False(t, ok)
}
