package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Poller runs a refresh task on a fixed cadence that can change while running.
// A run still in progress when the next one is due is skipped.
type Poller struct {
	task   func(ctx context.Context)
	logger *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPoller creates a stopped Poller.
func NewPoller(task func(ctx context.Context), logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{task: task, logger: logger}
}

// Start runs the task once right away and then every interval. Starting a
// running Poller only changes its interval.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	if p.cron != nil {
		p.mu.Unlock()
		p.SetInterval(interval)
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	p.schedule(interval)
	p.cron.Start()
	p.mu.Unlock()

	p.logger.Debug("polling started", "interval", interval)
	go p.tick()
}

// SetInterval reschedules the task. The next run is one interval from now.
func (p *Poller) SetInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil || interval == p.interval {
		return
	}
	p.cron.Remove(p.entry)
	p.schedule(interval)
	p.logger.Debug("polling interval changed", "interval", interval)
}

// Interval returns the current cadence, zero when stopped.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Stop cancels the schedule and waits for a running task to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	cancel := p.cancel
	p.cron = nil
	p.interval = 0
	p.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	p.wg.Wait()
	p.logger.Debug("polling stopped")
}

// schedule must be called with p.mu held.
func (p *Poller) schedule(interval time.Duration) {
	p.interval = interval
	p.entry = p.cron.Schedule(cron.Every(interval), cron.FuncJob(p.tick))
}

func (p *Poller) tick() {
	p.mu.Lock()
	if p.cron == nil {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	p.task(ctx)
}
