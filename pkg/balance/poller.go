package balance

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the balance refresh period
const DefaultInterval = 30 * time.Second

// RefreshFunc reloads balances. Errors are logged and polling continues.
type RefreshFunc func(ctx context.Context) error

// Poller runs a refresh on a fixed timer. Only one timer is ever
// outstanding: Start while running is a no-op.
type Poller struct {
	mu       sync.Mutex
	timer    *time.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	interval time.Duration
	refresh  RefreshFunc
	log      logrus.FieldLogger
}

// NewPoller creates a new poller
func NewPoller(interval time.Duration, refresh RefreshFunc, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval: interval,
		refresh:  refresh,
		log:      log,
	}
}

// Start refreshes immediately, then every interval until Stop or until ctx
// is done. It returns false if the poller was already running.
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	if p.timer != nil {
		p.mu.Unlock()
		return false
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	runCtx := p.ctx
	p.timer = time.AfterFunc(0, func() { p.tick(runCtx) })
	p.mu.Unlock()

	p.log.WithField("interval", p.interval).Debug("balance polling started")
	return true
}

// Running reports whether a timer is scheduled
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

// Stop cancels the outstanding timer and any refresh in flight
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer == nil {
		return
	}
	p.timer.Stop()
	p.timer = nil
	p.cancel()
	p.log.Debug("balance polling stopped")
}

func (p *Poller) tick(ctx context.Context) {
	p.mu.Lock()
	current := p.timer != nil && p.ctx == ctx
	p.mu.Unlock()
	if !current {
		return
	}

	if ctx.Err() == nil {
		if err := p.refresh(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Warn("failed to refresh balances")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Stopped or restarted while refreshing
	if p.timer == nil || p.ctx != ctx {
		return
	}
	if ctx.Err() != nil {
		p.timer = nil
		p.cancel()
		return
	}
	p.timer = time.AfterFunc(p.interval, func() { p.tick(ctx) })
}
