package app

import (
	"fmt"

	"github.com/crane-app/crane/internal/config"
	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/runtime/applecontainer"
	"github.com/crane-app/crane/internal/runtime/docker"
)

// NewClient constructs the runtime backend named by cfg.Runtime.
func NewClient(cfg config.Config) (runtime.Client, error) {
	switch cfg.Runtime {
	case config.RuntimeDocker:
		client, err := docker.New(cfg.DockerHost)
		if err != nil {
			return nil, fmt.Errorf("init docker backend: %w", err)
		}
		return client, nil
	case config.RuntimeContainer, "":
		runner := applecontainer.ExecRunner{Binary: cfg.ContainerBin}
		return applecontainer.New(runner, cfg.ContainerRoot), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
	}
}
