package schedulecontroller

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
)

// CheckInterval is how often the wall clock is compared against the table.
// Each matching minute fires once however often it is checked.
const CheckInterval = 20 * time.Second

type EntrySource interface {
	Schedule() ([model.NumScheduleEntries]model.ScheduleEntry, error)
}

type Scheduler struct {
	entries    EntrySource
	inject     func(protocol.Command) bool
	onFire     func()
	lastCheck  time.Time
	lastMinute time.Time
}

// New builds a scheduler that routes synthesized commands through inject
// and calls onFire after any entry fires.
func New(entries EntrySource, inject func(protocol.Command) bool, onFire func()) *Scheduler {
	return &Scheduler{entries: entries, inject: inject, onFire: onFire}
}

// Tick checks the table when CheckInterval has passed and the wall clock
// has entered a minute not yet evaluated.
func (s *Scheduler) Tick(now, wall time.Time) {
	if !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < CheckInterval {
		return
	}
	s.lastCheck = now

	minute := wall.Truncate(time.Minute)
	if minute.Equal(s.lastMinute) {
		return
	}
	s.lastMinute = minute

	entries, err := s.entries.Schedule()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read schedule")
		return
	}

	cmds := evaluateSchedule(entries, wall)
	for _, cmd := range cmds {
		handled := s.inject(cmd)
		log.Info().Str("command", cmd.Text).Bool("handled", handled).Msg("Schedule entry fired")
	}
	if len(cmds) > 0 && s.onFire != nil {
		s.onFire()
	}
}

func evaluateSchedule(entries [model.NumScheduleEntries]model.ScheduleEntry, wall time.Time) []protocol.Command {
	var cmds []protocol.Command
	for _, e := range entries {
		if e.Empty() {
			continue
		}
		if int(e.Hour) != wall.Hour() || int(e.Minute) != wall.Minute() || !e.OnWeekday(int(wall.Weekday())) {
			continue
		}
		keyword := "HVAC_SETTINGS"
		if e.AutoOnly() {
			keyword = "AUTO_SETTINGS"
		}
		cmds = append(cmds, protocol.Command{
			Text:   fmt.Sprintf("%s %d", keyword, e.TargetCx10()),
			ToMe:   true,
			Source: protocol.SourceSchedule,
		})
	}
	return cmds
}
