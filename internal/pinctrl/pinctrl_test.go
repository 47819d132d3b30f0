package pinctrl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockRun(t *testing.T, out string, err error) *[][]string {
	t.Helper()
	var calls [][]string
	orig := Run
	Run = func(args ...string) ([]byte, error) {
		calls = append(calls, args)
		return []byte(out), err
	}
	t.Cleanup(func() { Run = orig })
	return &calls
}

func TestParseGetAllOutput(t *testing.T) {
	sample := `
 0: ip    pu | hi // ID_SDA/GPIO0 = input
 1: ip    pu | hi // ID_SCL/GPIO1 = input
 2: no    pu | -- // GPIO2 = none
 4: ip    pn | lo // GPIO4 = input
 5: op dh pu | hi // GPIO5 = output
 6: op dh pu | hi // GPIO6 = output
12: op dh pd | hi // GPIO12 = output
13: op dh pd | hi // GPIO13 = output
26: op dl pn | lo // GPIO26 = output
`
	states, err := parseStates(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, states, 9)

	assert.Equal(t, PinState{Pin: 5, Mode: "op", Pull: "pu", Drive: "dh", Level: "hi", Comment: "GPIO5 = output"}, states[5])
	assert.Equal(t, "--", states[2].Level)
	assert.Equal(t, "no", states[2].Mode)
	assert.Equal(t, "dl", states[26].Drive)
	assert.Equal(t, "pn", states[26].Pull)
}

func TestReadPin(t *testing.T) {
	mockRun(t, "25: op dl pd | lo // GPIO25 = output\n", nil)

	ps, err := ReadPin(25)
	require.NoError(t, err)
	assert.Equal(t, "op", ps.Mode)
	assert.Equal(t, "lo", ps.Level)

	_, err = ReadPin(3)
	assert.Error(t, err)
}

func TestReadLevel(t *testing.T) {
	tests := []struct {
		output  string
		want    bool
		wantErr bool
	}{
		{"0", false, false},
		{"1", true, false},
		{"\n1\n", true, false},
		{"\n0\n", false, false},
		{"x", false, true},
		{"", false, true},
	}
	for _, tc := range tests {
		t.Run(strings.TrimSpace(tc.output), func(t *testing.T) {
			calls := mockRun(t, tc.output, nil)
			got, err := ReadLevel(17)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, [][]string{{"lev", "17"}}, *calls)
		})
	}
}

func TestReadLevels(t *testing.T) {
	calls := mockRun(t, "1\n0\n1\n", nil)
	levels, err := ReadLevels([]int{5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, levels)
	assert.Equal(t, [][]string{{"lev", "5,6,7"}}, *calls)

	mockRun(t, "1\n", nil)
	_, err = ReadLevels([]int{5, 6})
	assert.Error(t, err, "short output")
}

func TestSetPins(t *testing.T) {
	calls := mockRun(t, "", nil)
	require.NoError(t, SetPins([]int{20, 21}, "op", "pn", "dh"))
	require.NoError(t, SetPin(4, "ip", "pd"))
	require.NoError(t, SetPins(nil, "op"))
	assert.Equal(t, [][]string{
		{"set", "20,21", "op", "pn", "dh"},
		{"set", "4", "ip", "pd"},
	}, *calls)

	mockRun(t, "permission denied", errors.New("exit status 1"))
	err := SetPin(4, "op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
