package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/thatsimonsguy/packet-thermostat/internal/config"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
)

// BootScript drives every furnace output inactive so the thermostat passes
// straight through until the service starts.
func BootScript(outputs [8]*model.GPIOPin) string {
	var lines []string
	lines = append(lines, "#!/bin/bash", "", "# Packet thermostat outputs released at boot", "")

	for bit, pin := range outputs {
		if pin == nil {
			continue
		}
		drive := "dl"
		if !pin.ActiveHigh {
			drive = "dh"
		}
		label := fmt.Sprintf("output bit %d", bit)
		if bit == 0 {
			label += " (failsafe relay)"
		}
		lines = append(lines, "# "+label)
		lines = append(lines, fmt.Sprintf("pinctrl set %d op pn %s", pin.Number, drive))
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n") + "\n"
}

func WriteStartupScript(cfg config.Config) error {
	return os.WriteFile(cfg.BootScriptFilePath, []byte(BootScript(cfg.GPIO.Outputs)), 0755)
}

func StartupUnit(scriptPath string) string {
	return fmt.Sprintf(`[Unit]
Description=Release packet thermostat outputs at boot
After=network.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, scriptPath)
}

func InstallStartupService(cfg config.Config) error {
	return os.WriteFile(cfg.OSServicePath, []byte(StartupUnit(cfg.BootScriptFilePath)), 0644)
}

func RunStartupScript(cfg config.Config) error {
	cmd := exec.Command("/bin/bash", cfg.BootScriptFilePath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ThermostatUnit restarts the service whenever it exits, including after
// the watchdog gives up on a stalled loop.
func ThermostatUnit(cfg config.Config, execPath string) string {
	gpioUnitName := filepath.Base(cfg.OSServicePath)
	execCmd := fmt.Sprintf("%s -config-file %s -db %s", execPath, cfg.ConfigFile, cfg.DBPath)

	return fmt.Sprintf(`[Unit]
Description=Packet thermostat
After=%s
Requires=%s

[Service]
Type=simple
ExecStart=%s
Restart=always
RestartSec=2s

[Install]
WantedBy=multi-user.target
`, gpioUnitName, gpioUnitName, execCmd)
}

// InstallServices writes the boot script and both units.
func InstallServices(cfg config.Config, execPath string) error {
	if err := WriteStartupScript(cfg); err != nil {
		return fmt.Errorf("write boot script: %w", err)
	}
	if err := InstallStartupService(cfg); err != nil {
		return fmt.Errorf("install boot unit: %w", err)
	}
	if err := os.WriteFile(cfg.MainServicePath, []byte(ThermostatUnit(cfg, execPath)), 0644); err != nil {
		return fmt.Errorf("install thermostat unit: %w", err)
	}
	return nil
}
