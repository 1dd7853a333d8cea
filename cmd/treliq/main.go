package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mahsumaktas/treliq/internal/cliapp"
	"github.com/mahsumaktas/treliq/internal/config"
	"github.com/mahsumaktas/treliq/internal/observability"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: defaultConfigPaths(),
		FileName:    "treliq",
		EnvPrefix:   "TRELIQ",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := observability.NewSlogLogger(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	metrics := observability.NewMetrics()

	root := cliapp.NewRootCommand(cliapp.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Version: version,
	})
	root.SetContext(ctx)

	return root.Execute()
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "treliq"))
	}
	return paths
}
