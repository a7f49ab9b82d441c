// Package main wires config, broker, storage, strategy registry,
// coordinator, and dashboard together into the running process (spec
// §5 "Runtime Lifecycle"). Grounded on the teacher's cmd/bot/main.go:
// same flag-driven config path, same paper/live banner idiom, same
// signal-handling and dashboard start/shutdown goroutines — but the
// OSI-symbol-parsing and phantom-position-reconciliation helpers the
// teacher's main.go carries are Tradier/strangle-specific and have no
// analogue here; internal/engine/reconcile.go already performs the
// broker-vs-store reconciliation duty in a vendor-neutral way.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optionflow/coretrader/internal/broker"
	"github.com/optionflow/coretrader/internal/config"
	"github.com/optionflow/coretrader/internal/coordinator"
	"github.com/optionflow/coretrader/internal/dashboard"
	"github.com/optionflow/coretrader/internal/engine"
	"github.com/optionflow/coretrader/internal/marketctx"
	"github.com/optionflow/coretrader/internal/registry"
	"github.com/optionflow/coretrader/internal/retry"
	"github.com/optionflow/coretrader/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coretrader: %v\n", err)
		return 1
	}

	log := newLogger(cfg.Operation.LogLevel)
	log.Info("coretrader: the only adapter wired in this build is the deterministic paper broker; no socket-level vendor adapter is implemented")

	p := broker.NewPaper()
	brk := broker.Broker(broker.NewCircuitBreaker("paper", p))
	retryClient := retry.NewClient(brk, log)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Error("coretrader: failed to open trade store")
		return 1
	}
	defer st.Close()

	eng := engine.New(cfg.EngineConfig(), st, brk, retryClient, log)

	reg := registry.New(log)
	registerStrategyTypes(reg)
	for name, instCfg := range cfg.InstanceConfigs() {
		if err := reg.Load(name, instCfg); err != nil {
			log.WithField("instance", name).WithError(err).Warn("coretrader: failed to load strategy instance, skipping")
		}
	}

	regime := marketctx.NewRegimeDetector(cfg.RegimeConfig(), log.Logger)
	sectors := marketctx.NewSectorRotation(cfg.SectorRotation.RSWindow, cfg.SectorRotation.Overrides, log.Logger)

	disc := config.FileDiscoverer{Path: configPath}
	coord := coordinator.New(cfg.CoordinatorConfig(), brk, eng, reg, st, regime, sectors, disc, log)

	var dashServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashServer = dashboard.NewServer(cfg.DashboardConfig(), eng, reg, st, regime, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("coretrader: shutdown signal received, stopping")
		coord.Stop()
		cancel()
	}()

	if dashServer != nil {
		go func() {
			if err := dashServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("coretrader: dashboard server error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := dashServer.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("coretrader: dashboard shutdown error")
			}
		}()
	}

	go readCommands(ctx, coord, st, reg, log)

	if err := coord.Run(ctx); err != nil {
		log.WithError(err).Error("coretrader: coordinator exited with an error")
		return 1
	}

	log.Info("coretrader: stopped")
	return 0
}

// newLogger builds the logrus entry every other package receives (spec §6
// "operation.log_level" plus the teacher's paper/live mode formatter
// choice, generalized here to always use the text formatter since this
// build has no live-mode vendor adapter to distinguish from).
func newLogger(level string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(l)
}

// readCommands drives the stdin CLI surface (spec §6 "CLI surface"):
// /help and /quit are handled here directly since neither is
// coordinator state, while every other recognized line either goes to
// the coordinator's command channel or, for the store-backed report
// commands, straight to the Trade Store.
func readCommands(ctx context.Context, coord *coordinator.Coordinator, st *store.Store, reg *registry.Registry, log *logrus.Entry) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/help":
			fmt.Println(coordinator.HelpText)
			continue
		case "/quit":
			log.Info("coretrader: /quit received, stopping")
			coord.Stop()
			return
		}

		if handled := handleReportCommand(ctx, line, st, reg); handled {
			continue
		}

		cmd, err := coordinator.ParseCommand(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		reply := make(chan string, 1)
		cmd.Reply = reply
		coord.Commands() <- cmd
		select {
		case msg := <-reply:
			fmt.Println(msg)
		case <-time.After(5 * time.Second):
			fmt.Println("(no reply from coordinator)")
		case <-ctx.Done():
			return
		}
	}
}

// registerStrategyTypes wires every concrete strategy implementation
// into the registry under a config-facing type name (spec §6
// `strategies.<name>.type`), converting the registry's merged
// map[string]interface{} config into each strategy's typed Config.
func registerStrategyTypes(reg *registry.Registry) {
	reg.RegisterType("swing", swingFactory)
	reg.RegisterType("scalping", scalpingFactory)
	reg.RegisterType("orb", orbFactory)
	reg.RegisterType("bull_put_spread", bullPutSpreadFactory)
	reg.RegisterType("bear_put_spread", bearPutSpreadFactory)
	reg.RegisterType("long_put_straight", longPutStraightFactory)
	reg.RegisterType("iron_condor", ironCondorFactory)
}
