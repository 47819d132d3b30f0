package telemetry

import (
	"strings"

	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// MetricsSink turns snapshots into gauges. Labels name the per-wire
// series.
type MetricsSink struct {
	Gauge  func(name string, value float64, tags ...string)
	Labels func() signal.Labels
}

func (m MetricsSink) Publish(r Report) {
	snap := r.Snapshot
	if snap == nil {
		return
	}
	labels := signal.DefaultLabels
	if m.Labels != nil {
		labels = m.Labels()
	}

	for bit := 0; bit < 8; bit++ {
		wire := "wire:" + strings.ToLower(strings.TrimSpace(labels[bit]))
		mask := signal.Mask(1) << bit
		if signal.InputLegal.Has(mask) {
			m.Gauge("input", boolValue(snap.Inputs.Has(mask)), wire)
		}
		m.Gauge("output", boolValue(snap.Outputs.Has(mask)), wire)
	}

	mode := "mode:" + strings.ToLower(snap.Mode.Type.String())
	m.Gauge("mode.index", float64(snap.Mode.Index), mode)
	m.Gauge("stage", float64(snap.Stage), mode)
	m.Gauge("fan_override", boolValue(snap.FanOn), mode)
	m.Gauge("heat_safety", boolValue(snap.HeatSafety))
	m.Gauge("compressor_locked", boolValue(snap.CompressorLocked))

	if snap.HasTarget {
		m.Gauge("target_c", float64(snap.TargetCx10)/10, mode)
		m.Gauge("actual_c", float64(snap.ActualCx10)/10, mode)
	}
	if r.Kind != Periodic {
		return
	}
	for name, reading := range map[string]struct {
		cx10  int16
		valid bool
	}{
		"inlet":    {snap.Inlet.Cx10, snap.Inlet.Valid},
		"outlet":   {snap.Outlet.Cx10, snap.Outlet.Valid},
		"external": {snap.External.Cx10, snap.External.Valid},
	} {
		if reading.valid {
			m.Gauge("temperature_c", float64(reading.cx10)/10, "sensor:"+name)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
