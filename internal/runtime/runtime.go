// Package runtime defines the contract between crane and a container runtime
// backend, plus small helpers shared by the backends.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

var (
	// ErrNotFound reports that the runtime has no container with the given id.
	ErrNotFound = errors.New("container not found")
	// ErrNoLogs reports that a container exists but exposes no log streams.
	ErrNoLogs = errors.New("no logs available")
)

// Client is the narrow surface crane needs from a container runtime.
type Client interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context) ([]Container, error)
	OpenLogStreams(ctx context.Context, id string) ([]LogStream, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Create(ctx context.Context, spec CreateSpec) (string, error)
}

// State is the lifecycle state reported by the runtime.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateUnknown State = "unknown"
)

// Container is one entry of a container listing.
type Container struct {
	ID          string
	Name        string
	Image       string
	State       State
	Status      string
	CPUs        int
	MemoryBytes int64
	Ports       []Port
	Networks    []Attachment
	Created     time.Time
}

// Running reports whether the container is up.
func (c Container) Running() bool {
	return c.State == StateRunning
}

// DisplayName prefers the human name and falls back to the id.
func (c Container) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Port is a published port mapping.
type Port struct {
	HostIP        string
	HostPort      int
	ContainerPort int
	Protocol      string
}

func (p Port) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	host := p.HostIP
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d->%d/%s", host, p.HostPort, p.ContainerPort, proto)
}

// Attachment is a container's membership in a network.
type Attachment struct {
	Network  string
	Hostname string
	Address  string
	Gateway  string
}

// CreateSpec describes a container to create.
type CreateSpec struct {
	Name         string
	Image        string
	CPUs         int
	Memory       string // e.g. "512M", "2G"
	PublishPorts []string
	Networks     []string
	AutoRemove   bool
	Args         []string
}

// LogStream is one seekable log source of a container.
type LogStream interface {
	io.ReadSeekCloser
	Name() string
}

// LineDecoder is implemented by streams whose lines are framed (for example
// JSON envelopes). Decode returns the display text of one raw line.
type LineDecoder interface {
	DecodeLine(raw string) (string, error)
}

// StreamName returns the display name of stream idx out of total. The last
// stream of a multi-stream container is the runtime's own system log.
func StreamName(idx, total int) string {
	switch {
	case total > 1 && idx == total-1:
		return "System"
	case idx == 0:
		return "Process"
	default:
		return fmt.Sprintf("Process %d", idx+1)
	}
}

// FileStream is a LogStream backed by a file on disk.
type FileStream struct {
	*os.File
	name string
}

// OpenFile opens path as a named log stream.
func OpenFile(path, name string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileStream{File: f, name: name}, nil
}

// Name returns the display name of the stream.
func (s *FileStream) Name() string {
	return s.name
}

// CloseAll closes every stream, returning the first error.
func CloseAll(streams []LogStream) error {
	var first error
	for _, s := range streams {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
