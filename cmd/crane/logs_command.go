package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/runtime"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var streamIdx int
	var self bool
	var output string
	var compress bool

	cmd := &cobra.Command{
		Use:   "logs [ID]",
		Short: "Print the logs of a container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if compress && output == "" {
				return errors.New("--gzip needs an output file (-o)")
			}
			if self {
				return printSelfLog(cmd, ctx, lines)
			}
			if len(args) != 1 {
				return errors.New("container id required")
			}
			id := args[0]

			return ctx.withClient(cmd.Context(), func(client runtime.Client) error {
				streams, err := client.OpenLogStreams(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("open logs %s: %w", id, err)
				}
				defer func() { _ = runtime.CloseAll(streams) }()
				if streamIdx < 0 || streamIdx >= len(streams) {
					return fmt.Errorf("stream %d out of range: %s has %d", streamIdx, id, len(streams))
				}

				w, finish, err := openOutput(cmd.OutOrStdout(), output, compress)
				if err != nil {
					return err
				}
				n, err := writeStream(cmd.Context(), w, streams[streamIdx], lines)
				if err := finish(); err != nil {
					return err
				}
				if err != nil {
					return err
				}
				if output != "" {
					ctx.logger().Info("logs exported", "container", id, "lines", n, "file", output, "gzip", compress)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of lines to show (0 for all)")
	cmd.Flags().IntVar(&streamIdx, "stream", 0, "Stream index for containers with several logs")
	cmd.Flags().BoolVar(&self, "self", false, "Show crane's own log file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write logs to a file instead of stdout")
	cmd.Flags().BoolVar(&compress, "gzip", false, "Compress the output file with gzip")
	return cmd
}

func printSelfLog(cmd *cobra.Command, ctx *commandContext, lines int) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var printed int
	if lines > 0 {
		entries, err := logtail.ReadFile(cmd.Context(), cfg.LogFile, lines)
		if err != nil {
			return err
		}
		for _, line := range entries {
			fmt.Fprintln(out, line)
		}
		printed = len(entries)
	} else if printed, err = dumpFile(cmd.Context(), out, cfg.LogFile); err != nil {
		return err
	}
	if printed == 0 {
		fmt.Fprintln(out, "No log entries available")
	}
	return nil
}

// dumpFile streams the whole file at path to w. A missing file yields no lines.
func dumpFile(ctx context.Context, w io.Writer, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()
	buf := bufio.NewWriter(w)
	n, err := dumpLines(ctx, buf, file, nil)
	if err != nil {
		return n, err
	}
	return n, buf.Flush()
}

// openOutput returns where log lines go. The finish func flushes and closes
// whatever it opened.
func openOutput(stdout io.Writer, path string, compress bool) (io.Writer, func() error, error) {
	if path == "" {
		buf := bufio.NewWriter(stdout)
		return buf, buf.Flush, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	if !compress {
		buf := bufio.NewWriter(file)
		return buf, func() error {
			return errors.Join(buf.Flush(), file.Close())
		}, nil
	}
	zw := gzip.NewWriter(file)
	return zw, func() error {
		return errors.Join(zw.Close(), file.Close())
	}, nil
}

// writeStream copies the last n lines of stream to w, or all of it when n is
// zero. Framed lines are decoded the way the log view shows them.
func writeStream(ctx context.Context, w io.Writer, stream runtime.LogStream, n int) (int, error) {
	decoder, _ := stream.(runtime.LineDecoder)
	if n <= 0 {
		if _, err := stream.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seek %s log: %w", stream.Name(), err)
		}
		count, err := dumpLines(ctx, w, stream, decoder)
		if err != nil {
			return count, fmt.Errorf("read %s log: %w", stream.Name(), err)
		}
		return count, nil
	}

	chunk, err := logtail.ReadTail(ctx, stream, n, logtail.DefaultTailBytesPerLine)
	if err != nil {
		return 0, fmt.Errorf("read %s log: %w", stream.Name(), err)
	}
	for _, line := range chunk.Lines {
		if err := writeLine(w, line.Text, decoder); err != nil {
			return 0, err
		}
	}
	return len(chunk.Lines), nil
}

// dumpLines writes every line of src as it is read, the final undelimited
// one included.
func dumpLines(ctx context.Context, w io.Writer, src io.Reader, decoder runtime.LineDecoder) (int, error) {
	reader := logtail.NewLineReader(src)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		if err := writeLine(w, line.Text, decoder); err != nil {
			return count, err
		}
		count++
	}
}

func writeLine(w io.Writer, text string, decoder runtime.LineDecoder) error {
	if decoder != nil {
		if decoded, err := decoder.DecodeLine(text); err == nil {
			text = decoded
		}
	}
	if _, err := fmt.Fprintln(w, text); err != nil {
		return fmt.Errorf("write logs: %w", err)
	}
	return nil
}
