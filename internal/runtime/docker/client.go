// Package docker adapts the Docker Engine API to runtime.Client. Logs are read
// from the json-file driver's log on disk so they can be seeked like any other
// stream.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/crane-app/crane/internal/runtime"
)

const stopTimeoutSeconds = 10

// engineAPI is the subset of *client.Client the backend calls.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error)
	ContainerStart(ctx context.Context, id string, options container.StartOptions) error
	ContainerStop(ctx context.Context, id string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, name string) (container.CreateResponse, error)
	Close() error
}

// Ensure Client implements runtime.Client at compile time.
var _ runtime.Client = (*Client)(nil)

// Client is the Docker Engine backend.
type Client struct {
	api engineAPI
}

// New connects to host, or to DOCKER_HOST and the default socket when host
// is empty. The API version is negotiated on first use.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host = strings.TrimSpace(host); host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{api: cli}, nil
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	return c.api.Close()
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker: %w", err)
	}
	return nil
}

// ListContainers returns running and stopped containers.
func (c *Client) ListContainers(ctx context.Context) ([]runtime.Container, error) {
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]runtime.Container, 0, len(list))
	for _, item := range list {
		out = append(out, convertSummary(item))
	}
	return out, nil
}

func convertSummary(item types.Container) runtime.Container {
	ctr := runtime.Container{
		ID:      item.ID,
		Image:   item.Image,
		State:   parseState(item.State),
		Status:  item.Status,
		Created: time.Unix(item.Created, 0).UTC(),
	}
	if len(item.Names) > 0 {
		ctr.Name = strings.TrimPrefix(item.Names[0], "/")
	}
	for _, p := range item.Ports {
		ctr.Ports = append(ctr.Ports, runtime.Port{
			HostIP:        p.IP,
			HostPort:      int(p.PublicPort),
			ContainerPort: int(p.PrivatePort),
			Protocol:      p.Type,
		})
	}
	if item.NetworkSettings != nil {
		names := make([]string, 0, len(item.NetworkSettings.Networks))
		for name := range item.NetworkSettings.Networks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ep := item.NetworkSettings.Networks[name]
			att := runtime.Attachment{Network: name}
			if ep != nil {
				att.Gateway = ep.Gateway
				if ep.IPAddress != "" {
					att.Address = fmt.Sprintf("%s/%d", ep.IPAddress, ep.IPPrefixLen)
				}
			}
			ctr.Networks = append(ctr.Networks, att)
		}
	}
	return ctr
}

func parseState(state string) runtime.State {
	switch state {
	case "running", "restarting", "paused":
		return runtime.StateRunning
	case "created", "exited", "dead", "removing":
		return runtime.StateStopped
	default:
		return runtime.StateUnknown
	}
}

// OpenLogStreams opens the json-file log of the container.
func (c *Client) OpenLogStreams(ctx context.Context, id string) ([]runtime.LogStream, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, c.wrap("inspect", id, err)
	}
	if info.ContainerJSONBase == nil || info.LogPath == "" {
		return nil, fmt.Errorf("open logs %s: %w", id, runtime.ErrNoLogs)
	}
	f, err := runtime.OpenFile(info.LogPath, runtime.StreamName(0, 1))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("open logs %s: %w: %v", id, runtime.ErrNoLogs, err)
		}
		return nil, fmt.Errorf("open logs %s: %w", id, err)
	}
	return []runtime.LogStream{&jsonFileStream{FileStream: f}}, nil
}

// Start boots a container.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return c.wrap("start", id, err)
	}
	return nil
}

// Stop stops a container, waiting up to ten seconds before it is killed.
func (c *Client) Stop(ctx context.Context, id string) error {
	timeout := stopTimeoutSeconds
	if err := c.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return c.wrap("stop", id, err)
	}
	return nil
}

// Remove deletes a stopped container.
func (c *Client) Remove(ctx context.Context, id string) error {
	if err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{}); err != nil {
		return c.wrap("remove", id, err)
	}
	return nil
}

// Create creates a container and returns its id.
func (c *Client) Create(ctx context.Context, spec runtime.CreateSpec) (string, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	cfg, hostCfg, netCfg, err := buildCreate(spec)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func buildCreate(spec runtime.CreateSpec) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	exposed, bindings, err := nat.ParsePortSpecs(spec.PublishPorts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse ports: %w", err)
	}
	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Args,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		AutoRemove:   spec.AutoRemove,
	}
	if spec.Memory != "" {
		mem, err := units.RAMInBytes(spec.Memory)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse memory %q: %w", spec.Memory, err)
		}
		hostCfg.Memory = mem
	}
	if spec.CPUs > 0 {
		hostCfg.NanoCPUs = int64(spec.CPUs) * 1e9
	}
	var netCfg *network.NetworkingConfig
	if len(spec.Networks) > 0 {
		hostCfg.NetworkMode = container.NetworkMode(spec.Networks[0])
		netCfg = &network.NetworkingConfig{EndpointsConfig: map[string]*network.EndpointSettings{}}
		for _, n := range spec.Networks {
			netCfg.EndpointsConfig[n] = &network.EndpointSettings{}
		}
	}
	return cfg, hostCfg, netCfg, nil
}

func (c *Client) wrap(verb, id string, err error) error {
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("%s container %s: %w", verb, id, runtime.ErrNotFound)
	}
	return fmt.Errorf("%s container %s: %w", verb, id, err)
}
