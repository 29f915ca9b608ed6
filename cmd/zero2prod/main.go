// Command zero2prod runs the newsletter HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mynaner/zero2prod/internal/app"
	"github.com/mynaner/zero2prod/internal/config"
	"github.com/mynaner/zero2prod/internal/pkg/postgres"
	"github.com/mynaner/zero2prod/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("APP_CONFIG_FILE"), "path to a YAML config file")
	runMigrations := flag.Bool("migrate", false, "apply database migrations before starting")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *runMigrations {
		if err := postgres.Migrate(cfg.Database.URL, slog.Default()); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("received signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}
