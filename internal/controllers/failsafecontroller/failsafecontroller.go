package failsafecontroller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// HeatSafetyAction is the outcome of one heat-safety evaluation.
type HeatSafetyAction struct {
	Trip      bool
	Clear     bool
	Triple    int
	ToClear   signal.Mask
	InletCx10 int16
	Until     time.Time
}

// Tracker holds an active heat-safety shutdown until its timer runs out.
type Tracker struct {
	active  bool
	triple  int
	toClear signal.Mask
	until   time.Time
}

func (t *Tracker) Active() bool { return t.active }

// ToClear is the mask forced off while the shutdown is active.
func (t *Tracker) ToClear() signal.Mask {
	if !t.active {
		return 0
	}
	return t.toClear
}

func (t *Tracker) Until() time.Time { return t.until }

// Step evaluates the configured triples against the last output written to
// the furnace and the inlet temperature, then applies the result.
func (t *Tracker) Step(cfg model.HeatSafetyConfig, lastWritten signal.Mask, inletCx10 int16, inletValid bool, now time.Time) HeatSafetyAction {
	action := evaluateHeatSafety(*t, cfg, lastWritten, inletCx10, inletValid, now)
	t.execute(action)
	return action
}

func evaluateHeatSafety(state Tracker, cfg model.HeatSafetyConfig, lastWritten signal.Mask, inletCx10 int16, inletValid bool, now time.Time) HeatSafetyAction {
	var action HeatSafetyAction

	if state.active {
		if !now.Before(state.until) {
			action.Clear = true
			action.Triple = state.triple
		}
		return action
	}

	if !inletValid || cfg.TriggerCx10 == model.TriggerDisabled || inletCx10 < cfg.TriggerCx10 {
		return action
	}

	for i, triple := range cfg.Triples {
		if !triple.Matches(lastWritten.Output()) {
			continue
		}
		log.Debug().
			Int("triple", i+1).
			Uint8("output", uint8(lastWritten)).
			Int16("inlet", inletCx10).
			Int16("trigger", cfg.TriggerCx10).
			Msg("Heat-safety triple matched")

		action.Trip = true
		action.Triple = i
		action.ToClear = triple.ToClear
		action.InletCx10 = inletCx10
		action.Until = now.Add(time.Duration(cfg.HoldSeconds) * time.Second)
		break
	}
	return action
}

func (t *Tracker) execute(action HeatSafetyAction) {
	if action.Trip {
		log.Warn().
			Int("triple", action.Triple+1).
			Int16("inlet", action.InletCx10).
			Uint8("to_clear", uint8(action.ToClear)).
			Time("until", action.Until).
			Msg("Heat-safety shutdown activated")

		t.active = true
		t.triple = action.Triple
		t.toClear = action.ToClear
		t.until = action.Until
	}

	if action.Clear {
		log.Info().Int("triple", action.Triple+1).Msg("Heat-safety shutdown expired")
		*t = Tracker{}
	}
}
