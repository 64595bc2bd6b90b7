package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"daemonpanel/config"
	"daemonpanel/internal/logging"
	"daemonpanel/internal/registry"
	"daemonpanel/internal/server"
	"daemonpanel/internal/systemd"
	"daemonpanel/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := logging.New("error")
		errLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logging.New(cfg.LogLevel)

	reg, err := registry.New(cfg.Services)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid service configuration")
	}

	probe := systemd.NewProbe(cfg.ProbeTimeout)
	executor := systemd.NewExecutor(probe, cfg.ActionTimeout)
	fetcher := systemd.NewFetcher(cfg.LogTimeout)
	panel := view.NewAggregator(reg, probe, executor, fetcher)

	warnUnknownUnits(log, reg, probe)

	srv := server.New(cfg, log, panel)
	if err := srv.Run(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}

// warnUnknownUnits probes every configured unit once at startup. Units
// systemd does not know stay in the registry (the UI explains them as
// "configured but missing"), but the operator gets a heads-up in the log.
func warnUnknownUnits(log zerolog.Logger, reg *registry.Registry, probe *systemd.Probe) {
	ctx := context.Background()
	for _, entry := range reg.All() {
		_, err := probe.Query(ctx, entry.Unit)
		switch {
		case err == nil:
		case errors.Is(err, systemd.ErrUnitNotFound):
			log.Warn().Str("service", entry.ID).Str("unit", entry.Unit).Msg("configured unit is unknown to systemd")
		default:
			log.Warn().Err(err).Str("service", entry.ID).Str("unit", entry.Unit).Msg("startup probe failed")
		}
	}
}
