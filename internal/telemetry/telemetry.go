package telemetry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/temperature"
)

const timeFormat = "2006-01-02T15:04:05"

// Snapshot is the state of the thermostat after one loop iteration.
type Snapshot struct {
	At       time.Time    `json:"at"`
	Mode     model.ModeID `json:"mode"`
	ModeName string       `json:"mode_name"`
	Inputs   signal.Mask  `json:"inputs"`
	Outputs  signal.Mask  `json:"outputs"`

	Inlet    temperature.Reading `json:"inlet"`
	Outlet   temperature.Reading `json:"outlet"`
	External temperature.Reading `json:"external"`

	HasTarget  bool  `json:"has_target"`
	TargetCx10 int16 `json:"target_cx10"`
	ActualCx10 int16 `json:"actual_cx10"`
	Stage      int   `json:"stage"`
	FanOn      bool  `json:"fan_on"`

	HeatSafety       bool `json:"heat_safety"`
	CompressorLocked bool `json:"compressor_locked"`
}

type Kind int

const (
	Change Kind = iota
	Periodic
	Diagnostic
)

// Report is one emitted line. Snapshot is nil for diagnostics.
type Report struct {
	Kind     Kind
	Line     string
	Snapshot *Snapshot
}

type Sink interface {
	Publish(r Report)
}

// Reporter decides when to report and fans the report out to its sinks.
// Input or output changes report at once; temperatures are added on the
// periodic report or when one is requested.
type Reporter struct {
	interval time.Duration

	mu     sync.RWMutex
	labels signal.Labels
	units  model.DisplayUnits
	sinks  []Sink

	force        bool
	reported     bool
	lastIn       signal.Mask
	lastOut      signal.Mask
	lastPeriodic time.Time

	latest     Snapshot
	latestLine string
}

func NewReporter(labels signal.Labels, units model.DisplayUnits, interval time.Duration) *Reporter {
	return &Reporter{labels: labels, units: units, interval: interval}
}

func (r *Reporter) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

func (r *Reporter) SetLabels(l signal.Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = l
}

func (r *Reporter) SetUnits(u model.DisplayUnits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = u
}

// RequestReport makes the next Observe emit a full report.
func (r *Reporter) RequestReport() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.force = true
}

func (r *Reporter) Diagnostic(line string) {
	r.publish(Report{Kind: Diagnostic, Line: line})
}

// Observe records snap and emits a report if one is due.
func (r *Reporter) Observe(snap Snapshot) {
	r.mu.Lock()
	changed := !r.reported || snap.Inputs != r.lastIn || snap.Outputs != r.lastOut
	// A clock set backwards restarts the periodic cadence.
	elapsed := snap.At.Sub(r.lastPeriodic)
	periodic := r.force || elapsed >= r.interval || elapsed < 0

	r.latest = snap
	if !changed && !periodic {
		r.mu.Unlock()
		return
	}

	r.reported = true
	r.lastIn, r.lastOut = snap.Inputs, snap.Outputs
	kind := Change
	if periodic {
		kind = Periodic
		r.force = false
		r.lastPeriodic = snap.At
	}
	line := Render(snap, r.labels, r.units, periodic)
	r.latestLine = line
	r.mu.Unlock()

	r.publish(Report{Kind: kind, Line: line, Snapshot: &snap})
}

func (r *Reporter) publish(rep Report) {
	r.mu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(rep)
	}
}

// Latest returns the most recent snapshot and report line.
func (r *Reporter) Latest() (Snapshot, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latestLine
}

func (r *Reporter) Labels() signal.Labels {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.labels
}

// Render formats a report line, for example
//
//	2026-10-19T07:30:15 S:2:0 HEAT I:R,W O:Y,G In:23.1C T:20.0C A:19.8C
func Render(snap Snapshot, labels signal.Labels, units model.DisplayUnits, withTemps bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s S:%d:%d %s I:%s O:%s",
		snap.At.Format(timeFormat),
		snap.Mode.Type, snap.Mode.Index, snap.ModeName,
		labels.Active(snap.Inputs.Input()),
		labels.Active(snap.Outputs),
	)
	if snap.HeatSafety {
		b.WriteString(" HS")
	}
	if snap.CompressorLocked {
		b.WriteString(" CL")
	}
	if !withTemps {
		return b.String()
	}

	temp := func(name string, cx10 int16) {
		fmt.Fprintf(&b, " %s:%s%s", name, FormatTenths(Convert(cx10, units)), units)
	}
	for _, t := range []struct {
		name string
		r    temperature.Reading
	}{{"In", snap.Inlet}, {"Out", snap.Outlet}, {"Ext", snap.External}} {
		if t.r.Valid {
			temp(t.name, t.r.Cx10)
		}
	}
	if snap.HasTarget {
		temp("T", snap.TargetCx10)
		temp("A", snap.ActualCx10)
	}
	return b.String()
}

// Convert turns Celsius x10 into the display unit, still x10.
func Convert(cx10 int16, units model.DisplayUnits) int {
	if units == model.Fahrenheit {
		return int(cx10)*9/5 + 320
	}
	return int(cx10)
}

func FormatTenths(v int) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%d", sign, v/10, v%10)
}

// LineSink sends each report line over a text transport.
type LineSink struct {
	Name string
	Send func(line string) error
}

func (s LineSink) Publish(r Report) {
	if err := s.Send(r.Line); err != nil {
		log.Warn().Err(err).Str("sink", s.Name).Msg("Failed to send report")
	}
}
