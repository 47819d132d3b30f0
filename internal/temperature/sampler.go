package temperature

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/gpio"
)

type Sensor string

const (
	Inlet    Sensor = "inlet"
	Outlet   Sensor = "outlet"
	External Sensor = "external"
)

var Sensors = []Sensor{Inlet, Outlet, External}

type Reading struct {
	Cx10  int16
	At    time.Time
	Valid bool
}

type Config struct {
	Paths             map[Sensor]string
	SamplesPerReading int
	CycleInterval     time.Duration
	MaxAge            time.Duration
	MaxDeltaCx10      int16
	MaxAnomalies      int
}

func DefaultConfig(paths map[Sensor]string) Config {
	return Config{
		Paths:             paths,
		SamplesPerReading: 4,
		CycleInterval:     10 * time.Second,
		MaxAge:            5 * time.Minute,
		MaxDeltaCx10:      50,
		MaxAnomalies:      6,
	}
}

type history struct {
	lastGood  Reading
	anomalies int
}

type sample struct {
	cx10 int16
	err  error
}

// Sampler reads the 1-wire sensors without holding up the control loop.
// Each Step does at most a little bookkeeping; the slow bus read runs in
// the background and is collected on a later Step. Several samples are
// averaged per sensor, one sensor at a time.
type Sampler struct {
	cfg     Config
	sensors []Sensor
	read    func(path string) (int16, error)

	// step state
	idx       int
	taken     int
	sum       int
	failures  int
	pending   chan sample
	nextCycle time.Time

	mu       sync.RWMutex
	readings map[Sensor]Reading
	history  map[Sensor]*history
}

func NewSampler(cfg Config) *Sampler {
	return newSampler(cfg, gpio.ReadSensorTemp)
}

func newSampler(cfg Config, read func(string) (int16, error)) *Sampler {
	s := &Sampler{
		cfg:      cfg,
		read:     read,
		readings: make(map[Sensor]Reading),
		history:  make(map[Sensor]*history),
	}
	if s.cfg.SamplesPerReading < 1 {
		s.cfg.SamplesPerReading = 1
	}
	for _, sensor := range Sensors {
		if cfg.Paths[sensor] != "" {
			s.sensors = append(s.sensors, sensor)
			s.history[sensor] = &history{}
		}
	}
	return s
}

// Step advances the sampling state machine by one iteration.
func (s *Sampler) Step(now time.Time) {
	if len(s.sensors) == 0 {
		return
	}

	if s.pending != nil {
		select {
		case r := <-s.pending:
			s.pending = nil
			s.collect(r, now)
		default:
		}
		return
	}

	if s.idx == 0 && s.taken == 0 && now.Before(s.nextCycle) {
		return
	}

	path := s.cfg.Paths[s.sensors[s.idx]]
	ch := make(chan sample, 1)
	s.pending = ch
	go func() {
		cx10, err := s.read(path)
		ch <- sample{cx10: cx10, err: err}
	}()
}

func (s *Sampler) collect(r sample, now time.Time) {
	sensor := s.sensors[s.idx]
	if r.err != nil {
		s.failures++
		log.Error().Err(r.err).Str("sensor", string(sensor)).Int("failures", s.failures).Msg("Sensor read failed")
		if s.failures >= s.cfg.SamplesPerReading {
			s.advance(now)
		}
		return
	}

	s.sum += int(r.cx10)
	s.taken++
	if s.taken < s.cfg.SamplesPerReading {
		return
	}

	avg := int16(s.sum / s.taken)
	s.accept(sensor, avg, now)
	s.advance(now)
}

func (s *Sampler) advance(now time.Time) {
	s.taken, s.sum, s.failures = 0, 0, 0
	s.idx++
	if s.idx >= len(s.sensors) {
		s.idx = 0
		s.nextCycle = now.Add(s.cfg.CycleInterval)
	}
}

// accept applies anomaly rejection: a jump larger than MaxDeltaCx10 from
// the last good value is held back until it persists for MaxAnomalies
// readings in a row.
func (s *Sampler) accept(sensor Sensor, cx10 int16, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[sensor]
	reading := Reading{Cx10: cx10, At: now, Valid: true}

	if h.lastGood.Valid && abs(cx10-h.lastGood.Cx10) > s.cfg.MaxDeltaCx10 {
		h.anomalies++
		if h.anomalies < s.cfg.MaxAnomalies {
			log.Warn().
				Str("sensor", string(sensor)).
				Int16("cx10", cx10).
				Int16("last_good", h.lastGood.Cx10).
				Int("anomalies", h.anomalies).
				Msg("Temperature reading rejected as anomalous")
			return
		}
		log.Info().Str("sensor", string(sensor)).Int16("cx10", cx10).Msg("Stable new baseline detected, accepting temperature")
	}

	h.anomalies = 0
	h.lastGood = reading
	s.readings[sensor] = reading
	log.Debug().Str("sensor", string(sensor)).Int16("cx10", cx10).Msg("Temperature reading accepted")
}

// Reading returns the latest accepted value. Readings older than MaxAge
// are reported invalid.
func (s *Sampler) Reading(sensor Sensor, now time.Time) Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.readings[sensor]
	if r.Valid && s.cfg.MaxAge > 0 && now.Sub(r.At) > s.cfg.MaxAge {
		r.Valid = false
	}
	return r
}

func abs(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
