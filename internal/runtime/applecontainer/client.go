// Package applecontainer drives the macOS `container` CLI. Listings and
// lifecycle actions shell out to the binary; logs are read straight from the
// per-container files the runtime keeps under its application support root.
package applecontainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/crane-app/crane/internal/runtime"
)

const (
	defaultBinary = "container"
	stdioLog      = "stdio.log"
	systemLog     = "vminitd.log"
)

// Runner executes the container binary. It returns stdout; a non-zero exit
// is reported as an error carrying stderr.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs a binary found on PATH.
type ExecRunner struct {
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = defaultBinary
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
		}
		return nil, fmt.Errorf("%s %s: %s: %w", bin, strings.Join(args, " "), msg, err)
	}
	return stdout.Bytes(), nil
}

// Ensure Client implements runtime.Client at compile time.
var _ runtime.Client = (*Client)(nil)

// Client is the container CLI backend.
type Client struct {
	runner Runner
	root   string
}

// New builds a client. root is the runtime's data directory holding
// containers/<id>/stdio.log.
func New(runner Runner, root string) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Client{runner: runner, root: root}
}

// Ping checks that the runtime's system service is up.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, "system", "status"); err != nil {
		return fmt.Errorf("container system status: %w", err)
	}
	return nil
}

// ListContainers returns every container, running or not.
func (c *Client) ListContainers(ctx context.Context) ([]runtime.Container, error) {
	out, err := c.runner.Run(ctx, "list", "--all", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return parseList(out)
}

// OpenLogStreams opens the process log followed by the system log.
func (c *Client) OpenLogStreams(_ context.Context, id string) ([]runtime.LogStream, error) {
	dir := filepath.Join(c.root, "containers", id)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("open logs %q: %w", id, runtime.ErrNotFound)
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open logs %s: %w", id, runtime.ErrNotFound)
		}
		return nil, fmt.Errorf("open logs %s: %w", id, err)
	}

	var paths []string
	for _, name := range []string{stdioLog, systemLog} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("open logs %s: %w", id, runtime.ErrNoLogs)
	}

	streams := make([]runtime.LogStream, 0, len(paths))
	for i, path := range paths {
		s, err := runtime.OpenFile(path, runtime.StreamName(i, len(paths)))
		if err != nil {
			_ = runtime.CloseAll(streams)
			return nil, fmt.Errorf("open logs %s: %w", id, err)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// Start boots a stopped container.
func (c *Client) Start(ctx context.Context, id string) error {
	return c.lifecycle(ctx, "start", id)
}

// Stop stops a running container.
func (c *Client) Stop(ctx context.Context, id string) error {
	return c.lifecycle(ctx, "stop", id)
}

// Remove deletes a container.
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.lifecycle(ctx, "delete", id)
}

func (c *Client) lifecycle(ctx context.Context, verb, id string) error {
	if id == "" {
		return fmt.Errorf("%s container: id required", verb)
	}
	if _, err := c.runner.Run(ctx, verb, id); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s container %s: %w", verb, id, runtime.ErrNotFound)
		}
		return fmt.Errorf("%s container %s: %w", verb, id, err)
	}
	return nil
}

// Create creates a container from spec and returns its id.
func (c *Client) Create(ctx context.Context, spec runtime.CreateSpec) (string, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	out, err := c.runner.Run(ctx, createArgs(spec)...)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		id = spec.Name
	}
	return id, nil
}

func createArgs(spec runtime.CreateSpec) []string {
	args := []string{"create", "--name", spec.Name}
	if spec.CPUs > 0 {
		args = append(args, "--cpus", strconv.Itoa(spec.CPUs))
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	for _, p := range spec.PublishPorts {
		args = append(args, "--publish", p)
	}
	for _, n := range spec.Networks {
		args = append(args, "--network", n)
	}
	if spec.AutoRemove {
		args = append(args, "--rm")
	}
	args = append(args, spec.Image)
	return append(args, spec.Args...)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "notfound")
}

// listEntry mirrors one element of `container list --format json`.
type listEntry struct {
	Status        string            `json:"status"`
	Configuration entryConfig       `json:"configuration"`
	Networks      []entryAttachment `json:"networks"`
}

type entryConfig struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	Image    struct {
		Reference string `json:"reference"`
	} `json:"image"`
	Resources struct {
		CPUs          int   `json:"cpus"`
		MemoryInBytes int64 `json:"memoryInBytes"`
	} `json:"resources"`
	PublishedPorts []entryPort       `json:"publishedPorts"`
	Networks       []entryAttachment `json:"networks"`
	Labels         map[string]string `json:"labels"`
	CreationDate   *json.Number      `json:"creationDate,omitempty"`
}

type entryPort struct {
	HostAddress   string `json:"hostAddress"`
	HostPort      int    `json:"hostPort"`
	ContainerPort int    `json:"containerPort"`
	Proto         string `json:"proto"`
}

type entryAttachment struct {
	Network  string `json:"network"`
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
	Gateway  string `json:"gateway"`
}

func parseList(data []byte) ([]runtime.Container, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var entries []listEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode container list: %w", err)
	}
	containers := make([]runtime.Container, 0, len(entries))
	for _, e := range entries {
		cfg := e.Configuration
		ctr := runtime.Container{
			ID:          cfg.ID,
			Name:        cfg.Labels["com.apple.container.name"],
			Image:       cfg.Image.Reference,
			State:       parseState(e.Status),
			Status:      e.Status,
			CPUs:        cfg.Resources.CPUs,
			MemoryBytes: cfg.Resources.MemoryInBytes,
			Created:     parseCreated(cfg.CreationDate),
		}
		for _, p := range cfg.PublishedPorts {
			ctr.Ports = append(ctr.Ports, runtime.Port{
				HostIP:        p.HostAddress,
				HostPort:      p.HostPort,
				ContainerPort: p.ContainerPort,
				Protocol:      p.Proto,
			})
		}
		// Runtime attachments carry addresses; configured ones only names.
		attachments := e.Networks
		if len(attachments) == 0 {
			attachments = cfg.Networks
		}
		for _, a := range attachments {
			ctr.Networks = append(ctr.Networks, runtime.Attachment(a))
		}
		containers = append(containers, ctr)
	}
	return containers, nil
}

func parseState(status string) runtime.State {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "running":
		return runtime.StateRunning
	case "stopped", "exited", "stopping":
		return runtime.StateStopped
	default:
		return runtime.StateUnknown
	}
}

// referenceEpoch is the Unix time of 2001-01-01T00:00:00Z, the zero point of
// the dates the runtime encodes.
const referenceEpoch = 978307200

func parseCreated(n *json.Number) time.Time {
	if n == nil {
		return time.Time{}
	}
	secs, err := n.Float64()
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * float64(time.Second))
	return time.Unix(referenceEpoch+whole, frac).UTC()
}
