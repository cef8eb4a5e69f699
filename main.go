package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/soocke/scrollshot-go/app"
	"github.com/soocke/scrollshot-go/config"
)

func main() {
	cfgPath := flag.String("config", "scrollshot.json", "path to the JSON config file")
	debugFlag := flag.Bool("debug", false, "enable debug logging and instrumentation")
	flag.Parse()

	cfg, loadErr := config.Load(*cfgPath)
	if *debugFlag {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(os.Stdout, level)
	if loadErr != nil {
		logger.Warn("config load failed, using defaults", "path", *cfgPath, "error", loadErr)
	}

	container := app.BuildContainer(cfg, logger)
	if err := app.Run(container, *cfgPath, os.Stdin, os.Stdout); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}
