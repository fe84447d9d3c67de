package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storesync/internal/config"
	"github.com/vango-dev/storesync/pkg/bridge"
	"github.com/vango-dev/storesync/pkg/storage"
)

// cliOrigin tags writes made by one-shot commands.
const cliOrigin = "storesync-cli"

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	bridgeURL  string

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	slog.SetDefault(logger)
	return nil
}

// loadConfig reads path, which may name a file or a directory. Without a
// path the working directory is searched and defaults apply when it has
// no config file.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOrDefault(".")
	}
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return config.Load(path)
	}
	return config.LoadFile(path)
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func (a *app) areaConfig(scope storage.Scope) config.AreaConfig {
	if scope == storage.Session {
		return a.cfg.Session
	}
	return a.cfg.Area
}

// openArea opens the area configured for scope. With --bridge set the area
// announces its writes to the hub. The returned function releases both.
func (a *app) openArea(ctx context.Context, scope storage.Scope) (storage.Area, func(), error) {
	area, err := config.OpenArea(ctx, a.areaConfig(scope))
	if err != nil {
		return nil, nil, err
	}
	if a.bridgeURL == "" {
		return area, func() { area.Close() }, nil
	}

	client, err := bridge.Dial(ctx, a.bridgeURL, bridge.WithLogger(a.logger))
	if err != nil {
		area.Close()
		return nil, nil, fmt.Errorf("connect to bridge: %w", err)
	}
	wrapped := client.Wrap(area, scope)
	return wrapped, func() {
		wrapped.Close()
		client.Close()
	}, nil
}

func scopeFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "scope", "s", "persistent", "Storage scope: persistent or session")
}
