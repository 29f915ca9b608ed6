// Command useradd creates an account allowed to publish newsletter issues.
//
// The password is read from the first line of standard input:
//
//	echo "$PASSWORD" | useradd -username editor
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mynaner/zero2prod/internal/config"
	"github.com/mynaner/zero2prod/internal/domain"
	"github.com/mynaner/zero2prod/internal/identity"
	identitypostgres "github.com/mynaner/zero2prod/internal/identity/postgres"
	"github.com/mynaner/zero2prod/internal/pkg/postgres"
	"github.com/mynaner/zero2prod/internal/pkg/workerpool"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "useradd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("APP_CONFIG_FILE"), "path to a YAML config file")
	username := flag.String("username", "", "publisher username")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if *username == "" {
		return errors.New("-username is required")
	}

	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    1,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	pool := workerpool.New(workerpool.Config{Workers: 1}, logger)
	pool.Start()
	defer pool.Stop()

	svc := identity.NewService(identitypostgres.NewRepository(db), pool, logger)
	user, err := svc.CreateUser(ctx, *username, password)
	if err != nil {
		return err
	}

	fmt.Printf("created publisher %s (%s)\n", user.Username, user.ID)
	return nil
}

func readPassword(f *os.File) (domain.Secret, error) {
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return domain.Secret{}, fmt.Errorf("read password from stdin: %w", err)
	}
	return domain.NewSecret(strings.TrimRight(line, "\r\n")), nil
}
