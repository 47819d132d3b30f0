package main

import (
	"context"
	"database/sql"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/packet-thermostat/db"
	"github.com/thatsimonsguy/packet-thermostat/internal/api"
	"github.com/thatsimonsguy/packet-thermostat/internal/clock"
	"github.com/thatsimonsguy/packet-thermostat/internal/config"
	"github.com/thatsimonsguy/packet-thermostat/internal/controller"
	"github.com/thatsimonsguy/packet-thermostat/internal/datadog"
	"github.com/thatsimonsguy/packet-thermostat/internal/gpio"
	"github.com/thatsimonsguy/packet-thermostat/internal/logging"
	"github.com/thatsimonsguy/packet-thermostat/internal/model"
	"github.com/thatsimonsguy/packet-thermostat/internal/notifications"
	"github.com/thatsimonsguy/packet-thermostat/internal/protocol"
	"github.com/thatsimonsguy/packet-thermostat/internal/radio"
	"github.com/thatsimonsguy/packet-thermostat/internal/serialport"
	"github.com/thatsimonsguy/packet-thermostat/internal/signal"
	"github.com/thatsimonsguy/packet-thermostat/internal/store"
	"github.com/thatsimonsguy/packet-thermostat/internal/telemetry"
	"github.com/thatsimonsguy/packet-thermostat/internal/temperature"
	"github.com/thatsimonsguy/packet-thermostat/system/shutdown"
	"github.com/thatsimonsguy/packet-thermostat/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	if cfg.InstallService {
		exe, err := os.Executable()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve executable path")
		}
		if err := startup.InstallServices(cfg, exe); err != nil {
			log.Fatal().Err(err).Msg("Failed to install services")
		}
		log.Info().Str("unit", cfg.MainServicePath).Msg("Services installed")
		return
	}

	log.Info().
		Str("config", cfg.ConfigFile).
		Str("db", cfg.DBPath).
		Msg("Starting packet thermostat")

	gpio.SetSafeMode(cfg.SafeMode)
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED, GPIO writes are disabled system-wide")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}
	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer dbConn.Close()

	eeprom, err := db.NewEEPROM(dbConn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings image")
	}
	st := store.New(eeprom)

	board := gpio.NewPinBoard(cfg.GPIO.Inputs, cfg.GPIO.Outputs)
	if err := board.Setup(); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure GPIO")
	}
	shutdown.Register(board)

	datadog.InitMetrics(cfg.Datadog.AgentAddr, cfg.Datadog.Namespace, cfg.Datadog.Tags, cfg.Datadog.Enabled)
	defer datadog.Close()
	notifier := notifications.New(notifications.DefaultServer, cfg.NtfyTopic)

	reporter := telemetry.NewReporter(signal.DefaultLabels, model.Celsius, cfg.ReportInterval())
	reporter.AddSink(telemetry.MetricsSink{Gauge: datadog.Gauge, Labels: reporter.Labels})

	commands := protocol.NewQueue(16)
	watchdog := shutdown.NewWatchdog(cfg.Watchdog())

	opts := controller.Options{
		Board:         board,
		Store:         st,
		Sampler:       temperature.NewSampler(temperature.DefaultConfig(sensorPaths(cfg.Sensors))),
		Clock:         clock.New(),
		Reporter:      reporter,
		Commands:      commands,
		OnSafetyEvent: safetyRecorder(dbConn, notifier),
		Kick:          watchdog.Kick,
		Debounce:      cfg.Debounce(),
		LongIteration: cfg.LongIteration(),
		FailsafeHold:  cfg.FailsafeHold(),
	}

	if cfg.SerialPort != "" {
		port, err := serialport.Open(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			log.Fatal().Err(err).Str("port", cfg.SerialPort).Msg("Failed to open serial port")
		}
		defer port.Close()
		opts.Serial = port
		reporter.AddSink(telemetry.LineSink{Name: "serial", Send: port.WriteLine})
	}

	if cfg.MQTT.Broker != "" {
		radioCfg, err := st.Radio()
		if err != nil {
			log.Error().Err(err).Msg("Failed to read radio config")
		}
		bridge := connectRadio(cfg.MQTT, radioCfg)
		opts.Radio = bridge
		reporter.AddSink(telemetry.LineSink{Name: "radio", Send: bridge.Send})
	}

	if cfg.APIPort != 0 {
		hub := api.NewHub()
		reporter.AddSink(hub)
		server := api.NewServer(dbConn, reporter, commands, hub)
		go func() {
			if err := server.Start(cfg.APIPort); err != nil {
				log.Error().Err(err).Msg("API server stopped")
			}
		}()
	}

	thermostat := controller.New(opts)
	thermostat.Setup()

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go watchdog.Run(ctx)
	thermostat.Run(ctx, cfg.LoopInterval())

	shutdown.Shutdown()
}

func sensorPaths(s config.Sensors) map[temperature.Sensor]string {
	return map[temperature.Sensor]string{
		temperature.Inlet:    s.Inlet,
		temperature.Outlet:   s.Outlet,
		temperature.External: s.External,
	}
}

func connectRadio(cfg config.MQTT, radioCfg model.RadioConfig) *radio.Bridge {
	var bridge *radio.Bridge
	opts := radio.ClientOptions(cfg.Broker, cfg.ClientID, cfg.Username, cfg.Password).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
			bridge.Subscribe()
		})
	client := mqtt.NewClient(opts)
	bridge = radio.NewBridge(client, cfg.TopicPrefix, radioCfg)

	// With connect retry the token only completes once connected, so the
	// loop starts without waiting on the broker.
	client.Connect()
	return bridge
}

func safetyRecorder(conn *sql.DB, notifier *notifications.Notifier) func(model.SafetyEvent) {
	return func(e model.SafetyEvent) {
		if _, err := db.InsertSafetyEvent(conn, e); err != nil {
			log.Error().Err(err).Str("kind", e.Kind).Msg("Failed to record safety event")
		}
		go func() {
			if err := notifier.Publish(e); err != nil {
				log.Error().Err(err).Str("kind", e.Kind).Msg("Failed to send heat-safety alert")
			}
		}()
	}
}
