package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"resultdb/internal/app"
	"resultdb/pkg/config"
	"resultdb/pkg/logger"
	"resultdb/pkg/shutdown"
	"resultdb/pkg/state"
)

// Build metadata, set via ldflags on release builds.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	cfgFlag := config.ParseCommandFlags()
	cfgPath, explicit := config.ResolvePath(cfgFlag)
	cfg, err := config.Load(cfgPath, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("config_loaded", "path", cfgPath, "explicit", explicit)

	if err := state.EnsureStateDirs(cfg.Database.URL); err != nil {
		shutdown.Abort("prepare state directories", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, buildVersion())
	if err != nil {
		shutdown.Abort("initialize server", err)
	}
	if err := a.Run(ctx); err != nil {
		shutdown.Abort("serve", err)
	}
}

func buildVersion() string {
	v := version
	if commit != "none" {
		v += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		v += " @ " + buildDate
	}
	return v
}
