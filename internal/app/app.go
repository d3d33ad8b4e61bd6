package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/crane-app/crane/internal/config"
	"github.com/crane-app/crane/internal/logging"
	"github.com/crane-app/crane/internal/prefs"
	"github.com/crane-app/crane/internal/session"
	"github.com/crane-app/crane/internal/state"
	"github.com/crane-app/crane/internal/ui"
)

// Options configure the crane TUI.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/crane/prefs.toml
	RefreshEvery int    // seconds; zero uses the config value
}

// Run boots the crane TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logFile, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := NewClient(cfg)
	if err != nil {
		return err
	}
	if c, ok := client.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}

	store := &state.Store{}
	logs := session.NewManager(client, cfg.Session(), logger)
	defer logs.Close()

	svc := NewService(client, store, logs, logger)

	interval := cfg.RefreshInterval
	if opts.RefreshEvery > 0 {
		interval = time.Duration(opts.RefreshEvery) * time.Second
	}
	poller := NewPoller(svc, interval, logger)
	poller.SetAuto(userPrefs.Refreshing())
	poller.Start(ctx)

	// Populate the store before the first frame.
	_ = svc.Refresh(ctx)

	logger.Info("crane started", "runtime", cfg.Runtime, "refresh", interval)

	return ui.Run(ui.Options{
		Context:   ctx,
		Actions:   svc,
		Store:     store,
		Logs:      logs,
		Refresh:   poller,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
		Logger:    logger,
	})
}
