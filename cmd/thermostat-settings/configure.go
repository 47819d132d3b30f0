package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/packet-thermostat/internal/serialport"
)

const readyTimeout = 2 * time.Second

var (
	portName string
	baudRate int
	install  Install
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Install the furnace wiring configuration",
	Long: `Sends the configuration script to the thermostat's serial console, waiting
for the ready sentinel after each line. Without --port, or with --port -,
the script is printed to stdout instead.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVarP(&portName, "port", "p", "", "Serial port device (- for stdout)")
	configureCmd.Flags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate")
	configureCmd.Flags().IntSliceVarP(&install.Sensors, "sensor", "s", nil, "Remote thermometer id (repeatable)")
	configureCmd.Flags().BoolVarP(&install.BWire, "b-wire", "B", false, "Reversing valve is a B wire (energized for heat)")
	configureCmd.Flags().IntVar(&install.Stage3Delay, "ss3", 5*60, "Seconds from stage 2 to stage 3 heat")
	rootCmd.AddCommand(configureCmd)
}

// Commander runs one protocol line.
type Commander interface {
	Command(line string) error
}

type printer struct{ w io.Writer }

func (p printer) Command(line string) error {
	_, err := fmt.Fprintln(p.w, line)
	return err
}

type console struct {
	port *serialport.Port
	out  io.Writer
}

func (c console) Command(line string) error {
	fmt.Fprintln(c.out, ">", line)
	return c.port.Command(line, readyTimeout, func(got string) {
		fmt.Fprintln(c.out, got)
	})
}

func runConfigure(cmd *cobra.Command, args []string) error {
	var target Commander = printer{w: os.Stdout}
	if portName != "" && portName != "-" {
		port, err := serialport.Open(portName, baudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		target = console{port: port, out: os.Stdout}
	}
	return send(target, install.Script())
}

func send(target Commander, lines []string) error {
	for _, line := range lines {
		if err := target.Command(line); err != nil {
			return fmt.Errorf("serial command failed: %w", err)
		}
	}
	return nil
}
