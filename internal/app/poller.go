package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	defaultRefreshInterval = time.Second
	maxBackoff             = 30 * time.Second
)

type refresher interface {
	Refresh(ctx context.Context) error
}

// Poller refreshes the container list at a fixed cadence, backing off
// exponentially while the runtime keeps failing.
type Poller struct {
	target   refresher
	interval time.Duration
	logger   *slog.Logger

	auto    atomic.Bool
	trigger chan struct{}
}

// NewPoller builds a poller with auto refresh on.
func NewPoller(target refresher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Poller{
		target:   target,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
	p.auto.Store(true)
	return p
}

// SetAuto enables or disables timed refreshes. Manual triggers still run.
func (p *Poller) SetAuto(on bool) {
	p.auto.Store(on)
}

// Auto reports whether timed refreshes run.
func (p *Poller) Auto() bool {
	return p.auto.Load()
}

// Trigger requests an immediate refresh without blocking.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Start launches Run in a goroutine and returns immediately.
func (p *Poller) Start(ctx context.Context) {
	go p.Run(ctx)
}

// Run refreshes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	failures := 0
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
		case <-timer.C:
			if !p.auto.Load() {
				timer.Reset(p.interval)
				continue
			}
		}

		if err := p.target.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			p.logger.Debug("refresh failed", "failures", failures, "error", err)
		} else {
			failures = 0
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(calculateBackoff(failures, p.interval))
	}
}

// calculateBackoff doubles base per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
