package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/packet-thermostat/db"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
)

var dbPath string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Decode the stored settings image",
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := db.DumpEEPROMCLI(dbPath)
		if err != nil {
			return err
		}
		d, err := decode(store.New(store.Image(img)))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Reset the stored settings image to unset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.EraseEEPROMCLI(dbPath); err != nil {
			return err
		}
		fmt.Println("Settings erased")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{dumpCmd, eraseCmd} {
		c.Flags().StringVar(&dbPath, "db", "data/thermostat.db", "Path to settings database")
		rootCmd.AddCommand(c)
	}
}

type modeDump struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Settings model.Settings `json:"settings"`
	Error    string         `json:"error,omitempty"`
}

type imageDump struct {
	Radio      model.RadioConfig      `json:"radio"`
	Labels     signal.Labels          `json:"labels"`
	Units      string                 `json:"units"`
	Compressor model.CompressorConfig `json:"compressor"`
	HeatSafety model.HeatSafetyConfig `json:"heat_safety"`
	Schedule   []model.ScheduleEntry  `json:"schedule"`
	Selected   string                 `json:"selected,omitempty"`
	Counts     map[string]int         `json:"counts"`
	Modes      []modeDump             `json:"modes"`
}

func decode(st *store.Store) (imageDump, error) {
	var d imageDump
	var err error

	if d.Radio, err = st.Radio(); err != nil {
		return d, err
	}
	if d.Labels, err = st.Labels(); err != nil {
		return d, err
	}
	units, err := st.Units()
	if err != nil {
		return d, err
	}
	d.Units = units.String()
	if d.Compressor, err = st.Compressor(); err != nil {
		return d, err
	}
	if d.HeatSafety, err = st.HeatSafety(); err != nil {
		return d, err
	}
	schedule, err := st.Schedule()
	if err != nil {
		return d, err
	}
	for _, e := range schedule {
		if !e.Empty() {
			d.Schedule = append(d.Schedule, e)
		}
	}
	if id, ok, err := st.Selection(); err != nil {
		return d, err
	} else if ok {
		d.Selected = id.String()
	}

	d.Counts = make(map[string]int)
	for t := model.ModeType(0); t < model.NumModeTypes; t++ {
		n, err := st.Count(t)
		if err != nil {
			return d, err
		}
		d.Counts[t.String()] = n
		for i := 0; i < n; i++ {
			id := model.ModeID{Type: t, Index: uint8(i)}
			m := modeDump{ID: id.String(), Settings: model.DefaultSettings()}
			if err := st.Load(id, &m.Settings); err != nil {
				m.Error = err.Error()
			}
			m.Name = m.Settings.Base.Name.String()
			d.Modes = append(d.Modes, m)
		}
	}
	return d, nil
}
