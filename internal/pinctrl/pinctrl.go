package pinctrl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

type PinState struct {
	Pin     int
	Mode    string // e.g., "ip", "op", "no"
	Pull    string // e.g., "pu", "pd", "pn"
	Drive   string // e.g., "dh", "dl", ""
	Level   string // e.g., "hi", "lo", "--"
	Comment string // full comment, typically includes // GPIO#
}

var pinLineRegex = regexp.MustCompile(`^\s*(\d+):\s+(\S+)\s+(.*?)\s+\|\s+(\S+)\s+//\s+(.*GPIO(\d+).*)$`)

// Run executes the pinctrl binary. Tests replace it.
var Run = func(args ...string) ([]byte, error) {
	cmd := exec.Command("pinctrl", args...)
	return cmd.CombinedOutput()
}

// ReadAllPins returns the parsed result of `pinctrl get`, mapping each GPIO pin number to its PinState
func ReadAllPins() (map[int]PinState, error) {
	out, err := Run("get")
	if err != nil {
		return nil, fmt.Errorf("failed to execute pinctrl get: %w", err)
	}
	return parseStates(bytes.NewReader(out))
}

func parseStates(r io.Reader) (map[int]PinState, error) {
	result := make(map[int]PinState)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := pinLineRegex.FindStringSubmatch(scanner.Text())
		if len(matches) != 7 {
			continue
		}

		index, _ := strconv.Atoi(matches[1])
		state := PinState{
			Pin:     index,
			Mode:    matches[2],
			Level:   matches[4],
			Comment: matches[5],
		}
		for _, opt := range strings.Fields(matches[3]) {
			if state.Pull == "" && (opt == "pu" || opt == "pd" || opt == "pn") {
				state.Pull = opt
			} else if state.Drive == "" && (opt == "dh" || opt == "dl") {
				state.Drive = opt
			}
		}
		result[state.Pin] = state
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning pinctrl output: %w", err)
	}
	return result, nil
}

// ReadPin returns the PinState for a specific GPIO pin
func ReadPin(pin int) (*PinState, error) {
	all, err := ReadAllPins()
	if err != nil {
		return nil, err
	}
	state, ok := all[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not found in pinctrl output", pin)
	}
	return &state, nil
}

// ReadLevel performs a fast read of the logic level of a pin using `pinctrl lev <pin>`
func ReadLevel(pin int) (bool, error) {
	out, err := Run("lev", fmt.Sprint(pin))
	if err != nil {
		return false, fmt.Errorf("failed to read level for pin %d: %w", pin, err)
	}
	levels, err := parseLevels(string(out), 1)
	if err != nil {
		return false, err
	}
	return levels[0], nil
}

// ReadLevels reads several pins with one `pinctrl lev` call. Results are in
// the order given.
func ReadLevels(pins []int) ([]bool, error) {
	if len(pins) == 0 {
		return nil, nil
	}
	out, err := Run("lev", joinPins(pins))
	if err != nil {
		return nil, fmt.Errorf("failed to read levels for pins %v: %w", pins, err)
	}
	return parseLevels(string(out), len(pins))
}

func parseLevels(output string, want int) ([]bool, error) {
	fields := strings.Fields(output)
	if len(fields) != want {
		return nil, fmt.Errorf("unexpected output from pinctrl lev: %q", strings.TrimSpace(output))
	}
	levels := make([]bool, want)
	for i, f := range fields {
		switch f {
		case "1":
			levels[i] = true
		case "0":
		default:
			return nil, fmt.Errorf("unexpected output from pinctrl lev: %q", f)
		}
	}
	return levels, nil
}

// SetPin applies one or more pinctrl set options to the specified GPIO pin
// Example: SetPin(10, "op", "pn", "dh") sets pin 10 as output, no pull, drive high
func SetPin(pin int, opts ...string) error {
	return SetPins([]int{pin}, opts...)
}

// SetPins applies the same options to every pin in one call.
func SetPins(pins []int, opts ...string) error {
	if len(pins) == 0 {
		return nil
	}
	args := append([]string{"set", joinPins(pins)}, opts...)
	out, err := Run(args...)
	if err != nil {
		return fmt.Errorf("pinctrl set failed: %s (output: %s)", err, string(out))
	}
	return nil
}

func joinPins(pins []int) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
