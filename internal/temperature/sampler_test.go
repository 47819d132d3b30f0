package temperature

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)

type fakeBus struct {
	values map[string][]int16
	errs   map[string]error
}

func (f *fakeBus) read(path string) (int16, error) {
	if err := f.errs[path]; err != nil {
		return 0, err
	}
	vs := f.values[path]
	v := vs[0]
	if len(vs) > 1 {
		f.values[path] = vs[1:]
	}
	return v, nil
}

// stepSync runs one Step and waits for any read it started.
func stepSync(s *Sampler, now time.Time) {
	s.Step(now)
	if s.pending != nil {
		r := <-s.pending
		s.pending = nil
		s.collect(r, now)
	}
}

func newTestSampler(bus *fakeBus) *Sampler {
	cfg := DefaultConfig(map[Sensor]string{Inlet: "in", External: "ext"})
	cfg.SamplesPerReading = 2
	return newSampler(cfg, bus.read)
}

func TestSamplerAveragesPerSensor(t *testing.T) {
	bus := &fakeBus{values: map[string][]int16{
		"in":  {200, 211},
		"ext": {-35},
	}}
	s := newTestSampler(bus)

	stepSync(s, start)
	assert.False(t, s.Reading(Inlet, start).Valid, "needs two samples")
	stepSync(s, start)

	r := s.Reading(Inlet, start)
	require.True(t, r.Valid)
	assert.Equal(t, int16(205), r.Cx10)

	stepSync(s, start)
	stepSync(s, start)
	r = s.Reading(External, start)
	require.True(t, r.Valid)
	assert.Equal(t, int16(-35), r.Cx10)

	assert.False(t, s.Reading(Outlet, start).Valid, "not configured")
}

func TestSamplerWaitsBetweenCycles(t *testing.T) {
	bus := &fakeBus{values: map[string][]int16{"in": {200}, "ext": {100}}}
	s := newTestSampler(bus)
	for i := 0; i < 4; i++ {
		stepSync(s, start)
	}

	s.Step(start.Add(time.Second))
	assert.Nil(t, s.pending, "cycle interval not yet elapsed")

	s.Step(start.Add(s.cfg.CycleInterval))
	assert.NotNil(t, s.pending)
}

func TestSamplerStepDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	cfg := DefaultConfig(map[Sensor]string{Inlet: "in"})
	cfg.SamplesPerReading = 1
	s := newSampler(cfg, func(string) (int16, error) {
		<-release
		return 190, nil
	})

	s.Step(start)
	s.Step(start)
	assert.False(t, s.Reading(Inlet, start).Valid)

	close(release)
	require.Eventually(t, func() bool {
		s.Step(start)
		return s.Reading(Inlet, start).Valid
	}, time.Second, time.Millisecond)
	assert.Equal(t, int16(190), s.Reading(Inlet, start).Cx10)
}

func TestSamplerRejectsAnomalies(t *testing.T) {
	cfg := DefaultConfig(map[Sensor]string{Inlet: "in"})
	cfg.SamplesPerReading = 1
	cfg.MaxAnomalies = 3
	cfg.CycleInterval = 0
	bus := &fakeBus{values: map[string][]int16{"in": {200, 900, 205, 900, 900, 900}}}
	s := newSampler(cfg, bus.read)

	want := []int16{200, 200, 205, 205, 205, 900}
	for i, w := range want {
		stepSync(s, start)
		assert.Equal(t, w, s.Reading(Inlet, start).Cx10, "reading %d", i)
	}
}

func TestSamplerReadFailures(t *testing.T) {
	cfg := DefaultConfig(map[Sensor]string{Inlet: "in", Outlet: "out"})
	cfg.SamplesPerReading = 2
	bus := &fakeBus{
		values: map[string][]int16{"out": {150}},
		errs:   map[string]error{"in": errors.New("no such device")},
	}
	s := newSampler(cfg, bus.read)

	stepSync(s, start)
	stepSync(s, start)
	assert.False(t, s.Reading(Inlet, start).Valid)

	stepSync(s, start)
	stepSync(s, start)
	assert.True(t, s.Reading(Outlet, start).Valid, "moved on after repeated failures")
}

func TestReadingExpires(t *testing.T) {
	cfg := DefaultConfig(map[Sensor]string{Inlet: "in"})
	cfg.SamplesPerReading = 1
	bus := &fakeBus{values: map[string][]int16{"in": {200}}}
	s := newSampler(cfg, bus.read)

	stepSync(s, start)
	assert.True(t, s.Reading(Inlet, start.Add(cfg.MaxAge)).Valid)
	assert.False(t, s.Reading(Inlet, start.Add(cfg.MaxAge+time.Second)).Valid)
}
