// Package daemon runs the background loop that keeps the local cache
// reconciled while the app is in the foreground.
//
// The daemon:
//  1. Runs a full cycle on start if connected
//  2. Subscribes to connectivity transitions and runs a cycle on every
//     reconnect
//  3. Re-runs the cycle on a coarse interval while connected
//  4. Handles graceful shutdown, releasing its subscription
//
// A cycle is: pull, push, materialize due schedules, push again, then
// check budgets and upcoming bills. Overlapping cycles are tolerated by
// the engine's idempotency rather than prevented.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pocketledger/pocketledger/internal/client"
	"github.com/pocketledger/pocketledger/internal/netmon"
)

// Config holds configuration for the daemon.
type Config struct {
	// ResyncInterval is how often to re-run a full cycle while
	// connected, independent of transitions.
	ResyncInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ResyncInterval: 5 * time.Minute,
		Logger:         log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates connectivity watching and sync cycles.
type Daemon struct {
	client  *client.Client
	monitor netmon.Monitor
	config  *Config

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Daemon. The client and monitor are constructed and
// owned by the caller; the daemon only borrows them.
func New(c *client.Client, monitor netmon.Monitor, config *Config) (*Daemon, error) {
	if c == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		client:  c,
		monitor: monitor,
		config:  config,
		trigger: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation. This blocks until ctx is
// cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	unsubscribe := d.monitor.Subscribe(func(connected bool) {
		if !connected {
			d.config.Logger.Println("Connectivity lost")
			return
		}
		d.config.Logger.Println("Connectivity restored")
		d.kick()
	})
	defer unsubscribe()

	if d.monitor.Connected() {
		d.kick()
	}

	d.wg.Add(1)
	go d.run()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		d.wg.Wait()
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// kick requests a cycle without blocking; a pending request coalesces
// with the next.
func (d *Daemon) kick() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// run processes cycle requests and the periodic resync tick.
func (d *Daemon) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.trigger:
			d.runCycle()
		case <-ticker.C:
			if d.monitor.Connected() {
				d.runCycle()
			}
		}
	}
}

// runCycle performs one full reconciliation pass. Failures are logged;
// queued work survives for the next cycle.
func (d *Daemon) runCycle() {
	d.config.Logger.Println("Running sync cycle")

	if err := d.client.TriggerSync(d.ctx); err != nil {
		d.config.Logger.Printf("Warning: sync cycle failed: %v", err)
		return
	}
	if fired, err := d.client.CheckBudgets(d.ctx); err != nil {
		d.config.Logger.Printf("Warning: budget check failed: %v", err)
	} else if fired > 0 {
		d.config.Logger.Printf("Scheduled %d budget alerts", fired)
	}
	if fired, err := d.client.CheckUpcomingBills(d.ctx); err != nil {
		d.config.Logger.Printf("Warning: bill reminder check failed: %v", err)
	} else if fired > 0 {
		d.config.Logger.Printf("Scheduled %d bill reminders", fired)
	}

	d.config.Logger.Println("Sync cycle complete")
}
