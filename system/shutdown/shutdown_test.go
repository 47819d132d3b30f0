package shutdown

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

type fakeOutputs struct {
	writes []signal.Mask
	err    error
}

func (f *fakeOutputs) WriteOutputs(m signal.Mask) error {
	f.writes = append(f.writes, m)
	return f.err
}

func captureExit(t *testing.T) *[]int {
	t.Helper()
	codes := &[]int{}
	ExitFunc = func(code int) { *codes = append(*codes, code) }
	t.Cleanup(func() {
		ExitFunc = os.Exit
		Register(nil)
	})
	return codes
}

func TestShutdownReleasesOutputs(t *testing.T) {
	codes := captureExit(t)
	out := &fakeOutputs{}
	Register(out)

	Shutdown()
	assert.Equal(t, []signal.Mask{0}, out.writes)
	assert.Equal(t, []int{0}, *codes)

	ShutdownWithError(errors.New("boom"), "failed")
	assert.Equal(t, []int{0, 1}, *codes)
}

func TestShutdownWithoutOutputs(t *testing.T) {
	codes := captureExit(t)
	out := &fakeOutputs{err: errors.New("gpio gone")}
	Register(out)
	ShutdownWithError(ErrStalled, "stalled")
	assert.Equal(t, []int{1}, *codes)

	Register(nil)
	Shutdown()
	assert.Equal(t, []int{1, 0}, *codes)
}

func TestWatchdogExpiry(t *testing.T) {
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	w := &Watchdog{timeout: 8 * time.Second, now: func() time.Time { return now }}
	w.Kick()

	now = now.Add(8 * time.Second)
	assert.False(t, w.Expired())
	now = now.Add(time.Millisecond)
	assert.True(t, w.Expired())

	w.Kick()
	assert.False(t, w.Expired())
}

func TestWatchdogRunShutsDown(t *testing.T) {
	codes := captureExit(t)
	out := &fakeOutputs{}
	Register(out)

	w := NewWatchdog(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Run(ctx)

	require.Equal(t, []int{1}, *codes)
	assert.Equal(t, []signal.Mask{0}, out.writes)
}
