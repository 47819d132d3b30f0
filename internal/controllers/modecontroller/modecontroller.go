package modecontroller

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/modes"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
)

const (
	hvacPrefix    = "HVAC "
	commitKeyword = " COMMIT"
)

// Controller owns the selected mode instance, its working settings and its
// run state. All mode switches go through Select.
type Controller struct {
	store    *store.Store
	out      modes.Outputs
	id       model.ModeID
	settings model.Settings
	active   modes.Mode
	inputs   signal.Mask
}

// New starts in pass-through until Setup finds a stored selection.
func New(st *store.Store, out modes.Outputs) *Controller {
	c := &Controller{
		store:    st,
		out:      out,
		id:       model.ModeID{Type: model.PassThrough},
		settings: model.DefaultSettings(),
	}
	c.active = modes.New(model.PassThrough, &c.settings, out)
	return c
}

// Setup restores the power-up mode saved by the last MODE= command.
func (c *Controller) Setup() {
	id, ok, err := c.store.Selection()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read stored mode selection")
	}
	if ok {
		c.load(id)
	} else {
		log.Info().Msg("No valid stored mode, running pass-through")
	}
	c.active.TurnOff()
	log.Info().Str("mode", c.id.String()).Str("name", c.active.Name()).Msg("Mode controller ready")
}

func (c *Controller) load(id model.ModeID) {
	c.id = id
	if err := c.store.Load(id, &c.settings); err != nil {
		log.Error().Err(err).Str("mode", id.String()).Msg("Failed to load mode settings")
	}
	c.active = modes.New(id.Type, &c.settings, c.out)
}

func (c *Controller) ID() model.ModeID { return c.id }

func (c *Controller) Active() modes.Mode { return c.active }

// Settings is the working copy of the active instance.
func (c *Controller) Settings() model.Settings { return c.settings }

// Select switches to id if it is configured. Selecting the running instance
// again is a no-op that still succeeds.
func (c *Controller) Select(id model.ModeID) bool {
	count, err := c.store.Count(id.Type)
	if err != nil || int(id.Index) >= count {
		log.Debug().Str("mode", id.String()).Int("count", count).Msg("Ignoring selection of unconfigured mode")
		return false
	}
	if id == c.id {
		return true
	}

	c.load(id)
	if err := c.store.SaveSelection(id); err != nil {
		log.Error().Err(err).Str("mode", id.String()).Msg("Failed to persist mode selection")
	}
	c.active.TurnOff()
	c.active.OnInputsChanged(c.inputs, c.inputs)

	log.Info().Str("mode", id.String()).Str("name", c.active.Name()).Msg("Mode selected")
	return true
}

// Commit durably writes the working settings of the active instance.
func (c *Controller) Commit() error {
	if err := c.store.Commit(c.id, &c.settings); err != nil {
		return err
	}
	log.Info().Str("mode", c.id.String()).Str("name", c.active.Name()).Msg("Settings committed")
	return nil
}

func (c *Controller) SetCount(t model.ModeType, n uint8) error {
	if err := c.store.SetCount(t, n); err != nil {
		return err
	}
	log.Info().Str("type", t.String()).Uint8("count", n).Msg("Mode count set")
	return nil
}

func (c *Controller) OnInputsChanged(inputs, previous signal.Mask) {
	c.inputs = inputs
	c.active.OnInputsChanged(inputs, previous)
}

func (c *Controller) Tick(now time.Time) { c.active.Tick(now) }

// ProcessCommand handles the "HVAC " family: TYPE=, MODE=, COUNT=, NAME=
// and COMMIT. The prefix is case insensitive; the keywords are not.
// Anything else, including FAN=, is left for the active mode.
func (c *Controller) ProcessCommand(cmd protocol.Command) bool {
	if !cmd.ToMe || !protocol.HasPrefixFold(cmd.Text, hvacPrefix) {
		return false
	}
	text := cmd.Text

	hasType := false
	var typ uint8
	if rest, ok := protocol.After(text, "TYPE="); ok {
		if !protocol.NewScanner(rest).Uint8(&typ) || !model.ModeType(typ).Valid() {
			return false
		}
		hasType = true
	}

	if rest, ok := protocol.After(text, "NAME="); ok {
		c.settings.Base.Name = model.NewName(firstWord(rest))
		return true
	}

	if i := strings.Index(text, commitKeyword); i >= 0 {
		end := i + len(commitKeyword)
		if end == len(text) || text[end] == ' ' {
			if err := c.Commit(); err != nil {
				log.Error().Err(err).Msg("Commit failed")
			}
			return true
		}
	}

	if !hasType {
		return false
	}
	t := model.ModeType(typ)

	if rest, ok := protocol.After(text, "MODE="); ok {
		var idx uint8
		if !protocol.NewScanner(rest).Uint8(&idx) {
			return false
		}
		return c.Select(model.ModeID{Type: t, Index: idx})
	}

	if rest, ok := protocol.After(text, "COUNT="); ok {
		var n uint8
		if !protocol.NewScanner(rest).Uint8(&n) {
			return false
		}
		if err := c.SetCount(t, n); err != nil {
			log.Error().Err(err).Msg("Failed to set mode count")
		}
		return true
	}
	return false
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
