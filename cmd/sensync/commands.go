package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mholland/senville-sync/internal/api"
	"github.com/mholland/senville-sync/internal/config"
	"github.com/mholland/senville-sync/internal/engine"
	"github.com/mholland/senville-sync/internal/env"
	"github.com/mholland/senville-sync/internal/gateway"
	"github.com/mholland/senville-sync/internal/logging"
	"github.com/mholland/senville-sync/internal/metrics"
	"github.com/mholland/senville-sync/internal/midealan"
	"github.com/mholland/senville-sync/internal/model"
	"github.com/mholland/senville-sync/internal/mqttbridge"
	"github.com/mholland/senville-sync/internal/notify"
	"github.com/mholland/senville-sync/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync bridge",
	Long: `Connect to the appliance, start the poll loop, and serve the REST
API (and MQTT mirror, when a broker is configured) until interrupted.`,
	RunE: runBridge,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch and print the appliance state once",
	Long: `Connect to the appliance, perform a single status query, print the
result, and exit. Useful for verifying credentials and connectivity.`,
	RunE: runProbe,
}

func setup() config.Config {
	cfg := config.Load(configFile, logLevel)
	logging.Init(cfg.LogLevel)
	env.Cfg = &cfg
	metrics.Init()
	return cfg
}

func newGateway(cfg config.Config) *gateway.Client {
	dial := func(ctx context.Context) (gateway.Session, error) {
		sess, err := midealan.Dial(ctx, midealan.Config{
			Address: cfg.Address,
			Port:    cfg.Port,
			Token:   cfg.Token,
			Key:     cfg.Key,
		})
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
	return gateway.New(dial, cfg.Address, time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg := setup()

	log.Info().
		Str("address", cfg.Address).
		Int("listen_port", cfg.ListenPort).
		Msg("Starting Senville sync bridge")

	opts := engine.Options{
		Unit:                  model.Unit(cfg.Unit),
		PollInterval:          time.Duration(cfg.PollIntervalSeconds) * time.Second,
		SettleDelay:           time.Duration(cfg.SettleDelayMS) * time.Millisecond,
		FailureAlertThreshold: cfg.FailureAlertThreshold,
		Notifier:              notify.New(cfg.NtfyTopic),
	}

	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open state database")
		}
		defer st.Close()
		opts.Saver = st

		if snap, at, err := st.LoadSnapshot(); err != nil {
			log.Warn().Err(err).Msg("Failed to load stored snapshot, starting cold")
		} else if snap != nil {
			opts.Seed = snap
			opts.SeedTime = at
			log.Info().Time("synchronized_at", at).Msg("Seeded display from stored snapshot")
		}

		if unit, err := st.LoadUnit(); err != nil {
			log.Warn().Err(err).Msg("Failed to load unit preference")
		} else if unit != "" {
			opts.Unit = unit
		}
	}

	gw := newGateway(cfg)
	defer gw.Close()

	eng := engine.New(gw, opts)

	server := api.NewServer(eng)
	go func() {
		if err := server.Start(cfg.ListenPort); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	var bridge *mqttbridge.Bridge
	if cfg.MQTTBroker != "" {
		var err error
		bridge, err = mqttbridge.New(mqttbridge.Config{
			Broker:      cfg.MQTTBroker,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, eng)
		if err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTTBroker).Msg("Failed to connect MQTT bridge")
		}
		bridge.Start()
	}

	if err := eng.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	eng.Stop()
	if bridge != nil {
		bridge.Close()
	}
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg := setup()

	gw := newGateway(cfg)
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	st, err := gw.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	fmt.Printf("Device %s:\n", cfg.Address)
	fmt.Printf("  Power:            %v\n", st.Running)
	fmt.Printf("  Mode:             %d\n", st.Mode)
	fmt.Printf("  Target temp (C):  %d\n", st.TargetTempC)
	fmt.Printf("  Indoor temp (C):  %d\n", st.IndoorTempC)
	fmt.Printf("  Fan speed:        %d\n", st.FanSpeed)
	fmt.Printf("  Vertical swing:   %v\n", st.VerticalSwing)
	fmt.Printf("  Horizontal swing: %v\n", st.HorizontalSwing)
	return nil
}
