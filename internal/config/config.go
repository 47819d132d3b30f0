package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
)

// GPIO wires each signal bit to a pin, indexed by bit number. Output bit 0
// drives the failsafe relay.
type GPIO struct {
	Inputs  [8]*model.GPIOPin `json:"inputs"`
	Outputs [8]*model.GPIOPin `json:"outputs"`
}

// Sensors are 1-wire device directories.
type Sensors struct {
	Inlet    string `json:"inlet"`
	Outlet   string `json:"outlet"`
	External string `json:"external"`
}

type MQTT struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
}

type Datadog struct {
	Enabled   bool     `json:"enabled"`
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

type Config struct {
	ConfigFile     string
	DBPath         string
	LogLevel       zerolog.Level
	InstallService bool

	LogFile    string `json:"log_file"`
	SerialPort string `json:"serial_port"`
	BaudRate   int    `json:"baud_rate"`

	LoopIntervalMillis     int `json:"loop_interval_millis"`
	WatchdogSeconds        int `json:"watchdog_seconds"`
	FailsafeMinHoldSeconds int `json:"failsafe_min_hold_seconds"`
	DebounceMillis         int `json:"debounce_millis"`
	LongIterationMillis    int `json:"long_iteration_millis"`
	ReportIntervalSeconds  int `json:"report_interval_seconds"`

	SafeMode bool `json:"safe_mode"`
	APIPort  int  `json:"api_port"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`
	MainServicePath    string `json:"main_service_path"`

	GPIO      GPIO    `json:"gpio"`
	Sensors   Sensors `json:"sensors"`
	MQTT      MQTT    `json:"mqtt"`
	Datadog   Datadog `json:"datadog"`
	NtfyTopic string  `json:"ntfy_topic"`
}

func Load() Config {
	var configFile, dbPath, logLevel string
	var install bool

	flag.StringVar(&configFile, "config-file", "config.json", "Path to thermostat config file")
	flag.StringVar(&dbPath, "db", "data/thermostat.db", "Path to settings database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&install, "install-service", false, "Install the systemd unit and exit")
	flag.Parse()

	cfg := LoadFile(configFile)
	cfg.DBPath = dbPath
	cfg.LogLevel = parseLogLevel(logLevel)
	cfg.InstallService = install
	return cfg
}

// LoadFile decodes a config file, fills defaults and validates it.
func LoadFile(path string) Config {
	var cfg Config

	file, err := os.Open(path)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}
	cfg.ConfigFile = path

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func (cfg *Config) applyDefaults() {
	defaults := []struct {
		field *int
		value int
	}{
		{&cfg.BaudRate, 115200},
		{&cfg.LoopIntervalMillis, 50},
		{&cfg.WatchdogSeconds, 8},
		{&cfg.FailsafeMinHoldSeconds, 10},
		{&cfg.DebounceMillis, 100},
		{&cfg.LongIterationMillis, 250},
		{&cfg.ReportIntervalSeconds, 60},
	}
	for _, d := range defaults {
		if *d.field == 0 {
			*d.field = d.value
		}
	}
	strDefaults := []struct {
		field *string
		value string
	}{
		{&cfg.BootScriptFilePath, "/usr/local/bin/thermostat-gpio.sh"},
		{&cfg.OSServicePath, "/etc/systemd/system/thermostat-gpio.service"},
		{&cfg.MainServicePath, "/etc/systemd/system/packet-thermostat.service"},
	}
	for _, d := range strDefaults {
		if *d.field == "" {
			*d.field = d.value
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "packet-thermostat"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "thermostat"
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedPins      = map[int]string{}
		conflicts     []string
	)

	check := func(name string, pin *model.GPIOPin, required bool) {
		if pin == nil {
			if required {
				missingFields = append(missingFields, name)
			}
			return
		}
		if other, exists := usedPins[pin.Number]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use pin %d", name, other, pin.Number))
		} else {
			usedPins[pin.Number] = name
		}
	}

	for bit, pin := range cfg.GPIO.Inputs {
		check(fmt.Sprintf("gpio.inputs[%d]", bit), pin, signal.InputLegal.Has(signal.Mask(1)<<bit))
	}
	for bit, pin := range cfg.GPIO.Outputs {
		check(fmt.Sprintf("gpio.outputs[%d]", bit), pin, true)
	}

	if len(missingFields) > 0 {
		panic("Missing required GPIO config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
	if cfg.WatchdogSeconds*1000 <= cfg.LoopIntervalMillis {
		panic("watchdog_seconds must exceed loop_interval_millis")
	}
}

func (cfg Config) LoopInterval() time.Duration {
	return time.Duration(cfg.LoopIntervalMillis) * time.Millisecond
}

func (cfg Config) Watchdog() time.Duration {
	return time.Duration(cfg.WatchdogSeconds) * time.Second
}

func (cfg Config) FailsafeHold() time.Duration {
	return time.Duration(cfg.FailsafeMinHoldSeconds) * time.Second
}

func (cfg Config) Debounce() time.Duration {
	return time.Duration(cfg.DebounceMillis) * time.Millisecond
}

func (cfg Config) LongIteration() time.Duration {
	return time.Duration(cfg.LongIterationMillis) * time.Millisecond
}

func (cfg Config) ReportInterval() time.Duration {
	return time.Duration(cfg.ReportIntervalSeconds) * time.Second
}
