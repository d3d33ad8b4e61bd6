package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/config"
	"github.com/crane-app/crane/internal/runtime"
)

type fakeClient struct {
	mu         sync.Mutex
	containers []runtime.Container
	logDir     string
	streams    int
	failOn     string
	calls      []string
	created    runtime.CreateSpec
}

func (f *fakeClient) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if call == f.failOn {
		return runtime.ErrNotFound
	}
	return nil
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) ListContainers(context.Context) ([]runtime.Container, error) {
	return append([]runtime.Container(nil), f.containers...), nil
}

// OpenLogStreams opens <logDir>/<id>.log, plus <id>.<n>.log for every extra
// stream the fake was configured with.
func (f *fakeClient) OpenLogStreams(_ context.Context, id string) ([]runtime.LogStream, error) {
	total := f.streams
	if total < 1 {
		total = 1
	}
	var streams []runtime.LogStream
	for i := 0; i < total; i++ {
		name := id + ".log"
		if i > 0 {
			name = id + "." + string(rune('0'+i)) + ".log"
		}
		stream, err := runtime.OpenFile(filepath.Join(f.logDir, name), runtime.StreamName(i, total))
		if err != nil {
			_ = runtime.CloseAll(streams)
			return nil, runtime.ErrNoLogs
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

func (f *fakeClient) Start(_ context.Context, id string) error { return f.record("start " + id) }
func (f *fakeClient) Stop(_ context.Context, id string) error { return f.record("stop " + id) }
func (f *fakeClient) Remove(_ context.Context, id string) error { return f.record("rm " + id) }

func (f *fakeClient) Create(_ context.Context, spec runtime.CreateSpec) (string, error) {
	f.mu.Lock()
	f.created = spec
	f.mu.Unlock()
	return "new-" + spec.Name, f.record("create " + spec.Image)
}

type cliTestEnv struct {
	ctx     *commandContext
	client  *fakeClient
	baseDir string
	logFile string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", base)
	logFile := filepath.Join(base, "state", "crane.log")
	configPath := filepath.Join(base, "config.toml")
	content := "log_level = \"error\"\nlog_file = \"" + filepath.ToSlash(logFile) + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	client := &fakeClient{logDir: base}
	ctx := newCommandContext(&configPath)
	ctx.newClient = func(config.Config) (runtime.Client, error) { return client, nil }

	return &cliTestEnv{ctx: ctx, client: client, baseDir: base, logFile: logFile}
}

func (e *cliTestEnv) writeLog(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(e.baseDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func runCLI(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
