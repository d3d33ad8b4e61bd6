package session

import (
	"time"

	"github.com/crane-app/crane/internal/logtail"
)

// Config carries every tunable of the log engine. It is passed in explicitly;
// nothing in this package reads global settings.
type Config struct {
	// InitialLines is how many lines per stream the first view loads.
	InitialLines int
	// InitialBytesPerLine sizes the first read window near end of stream.
	InitialBytesPerLine uint64
	// OlderLines is how many lines per stream one history load recovers.
	OlderLines int
	// OlderBytesPerLine sizes the byte budget of a history load.
	OlderBytesPerLine uint64
	// AppendCap and PrependCap bound each stream's window.
	AppendCap  int
	PrependCap int
	// PollInterval is the delay between follow polls of the active stream.
	PollInterval time.Duration
	// ChunkSize is the read size of the line reader.
	ChunkSize int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		InitialLines:        100,
		InitialBytesPerLine: logtail.DefaultTailBytesPerLine,
		OlderLines:          50,
		OlderBytesPerLine:   logtail.DefaultOlderBytesPerLine,
		AppendCap:           logtail.DefaultAppendCap,
		PrependCap:          logtail.DefaultPrependCap,
		PollInterval:        3 * time.Second,
		ChunkSize:           4096,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialLines <= 0 {
		c.InitialLines = def.InitialLines
	}
	if c.InitialBytesPerLine == 0 {
		c.InitialBytesPerLine = def.InitialBytesPerLine
	}
	if c.OlderLines <= 0 {
		c.OlderLines = def.OlderLines
	}
	if c.OlderBytesPerLine == 0 {
		c.OlderBytesPerLine = def.OlderBytesPerLine
	}
	if c.AppendCap <= 0 {
		c.AppendCap = def.AppendCap
	}
	if c.PrependCap <= 0 {
		c.PrependCap = def.PrependCap
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	return c
}

// olderBudget is the byte budget of one history load per stream.
func (c Config) olderBudget() uint64 {
	return uint64(c.OlderLines) * c.OlderBytesPerLine
}
