// Package app wires the node's subsystems together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/verdantworks/soilnode/internal/constants"
	"github.com/verdantworks/soilnode/internal/controllers/status"
	"github.com/verdantworks/soilnode/internal/log"
	"github.com/verdantworks/soilnode/internal/netman"
	"github.com/verdantworks/soilnode/internal/plant"
	"github.com/verdantworks/soilnode/internal/profile"
	"github.com/verdantworks/soilnode/internal/protocol"
	"github.com/verdantworks/soilnode/internal/sampler"
	"github.com/verdantworks/soilnode/internal/store"
	"github.com/verdantworks/soilnode/internal/timeutil"
	"github.com/verdantworks/soilnode/internal/transport"
	"github.com/verdantworks/soilnode/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger

	// SensorSource overrides the configured source. Used by the
	// davis-style hardware builds that bring their own probe driver.
	SensorSource sampler.SensorSource

	// Restart overrides the process-exit restart used for the reset
	// command.
	Restart func()
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock, err := timeutil.NewNodeClock(a.cfg.Paths.TimezoneFile, a.logger)
	if err != nil {
		return fmt.Errorf("initializing clock: %w", err)
	}

	profiles, err := profile.NewManager(a.cfg.Paths.ProfileFile, a.logger)
	if err != nil {
		return fmt.Errorf("initializing profile manager: %w", err)
	}

	network, err := netman.NewManager(a.cfg.Paths.NetworkFile, netman.NullUplink{}, a.logger)
	if err != nil {
		return fmt.Errorf("initializing network manager: %w", err)
	}

	samples := store.New(clock, a.logger)

	monitor := plant.NewMonitor(ctx, &wg, plant.NewEngine(samples, a.logger), samples, profiles, 0, a.logger)
	monitor.Start()

	source := a.SensorSource
	if source == nil {
		if !a.cfg.Sampler.Simulate {
			return fmt.Errorf("no sensor source: configure sampler.simulate or provide a probe driver")
		}
		source = sampler.NewSimulator(a.cfg.Sampler.SimulatorSeed)
	}
	acquisition := sampler.New(source, samples, clock,
		time.Duration(a.cfg.Sampler.IntervalSeconds)*time.Second, a.logger)
	acquisition.Start(ctx, &wg)

	restart := a.Restart
	if restart == nil {
		restart = func() { os.Exit(0) }
	}

	engine := protocol.NewEngine(protocol.Deps{
		Store:    samples,
		Profiles: profiles,
		Clock:    clock,
		Network:  network,
		Input:    buttonInput{},
		Notifier: nil, // set below once the link exists
		Identity: protocol.Identity{
			Name:            a.cfg.Device.Name,
			FirmwareVersion: constants.FirmwareVersion,
			HardwareVersion: constants.HardwareVersion,
		},
		Restart: restart,
	}, a.logger)

	link, err := transport.NewLink(transport.Config{
		SerialDevice: a.cfg.Link.SerialDevice,
		Baud:         a.cfg.Link.Baud,
		ListenAddr:   a.cfg.Link.ListenAddr,
	}, engine, a.logger)
	if err != nil {
		return fmt.Errorf("initializing command link: %w", err)
	}
	engine.SetNotifier(link)
	link.Start(ctx, &wg)

	if a.cfg.HTTP.ListenAddr != "" {
		diag := status.NewController(ctx, &wg, status.Config{ListenAddr: a.cfg.HTTP.ListenAddr},
			samples, monitor, profiles, link, network, a.logger)
		if err := diag.StartController(); err != nil {
			return fmt.Errorf("starting diagnostics server: %w", err)
		}
	}

	log.Infof("%s started, session %s", a.cfg.Device.Name, engine.SessionID())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// buttonInput is the pushbutton stub for builds without GPIO hardware.
type buttonInput struct{}

func (buttonInput) IsPressed() bool { return false }
