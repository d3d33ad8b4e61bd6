package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crane-app/crane/internal/app"
	"github.com/crane-app/crane/internal/config"
	"github.com/crane-app/crane/internal/logging"
	"github.com/crane-app/crane/internal/runtime"
)

const pingTimeout = 5 * time.Second

type commandContext struct {
	configFlag *string

	// newClient builds the runtime backend; tests swap it for a fake.
	newClient func(config.Config) (runtime.Client, error)

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		newClient:  app.NewClient,
	}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output stays clean for pipes.
func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.New(os.Stderr, "info")
	}
	return logging.New(os.Stderr, cfg.LogLevel)
}

func (c *commandContext) withClient(ctx context.Context, fn func(runtime.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := c.newClient(cfg)
	if err != nil {
		return err
	}
	if closer, ok := client.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}
	return fn(client)
}
