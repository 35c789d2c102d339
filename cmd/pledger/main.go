// pledger is the PocketLedger command-line client: an offline-first
// personal finance tracker backed by a local SQLite cache that syncs
// against a remote Postgres store when reachable.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pocketledger/pocketledger/internal/client"
	"github.com/pocketledger/pocketledger/internal/config"
	"github.com/pocketledger/pocketledger/internal/localstore"
	"github.com/pocketledger/pocketledger/internal/netmon"
	"github.com/pocketledger/pocketledger/internal/notify"
	"github.com/pocketledger/pocketledger/internal/outbox"
	"github.com/pocketledger/pocketledger/internal/recurring"
	"github.com/pocketledger/pocketledger/internal/remote"
	syncengine "github.com/pocketledger/pocketledger/internal/sync"
)

var rootCmd = &cobra.Command{
	Use:   "pledger",
	Short: "Offline-first personal finance tracker",
	Long: `pledger tracks transactions, savings goals, budgets and recurring
bills against a local SQLite cache. Mutations apply locally first and
queue for the remote store; 'pledger sync' (or the daemon) reconciles
the two whenever the remote is reachable.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired subsystems behind one open/close pair. Each
// command opens the app, does its work, and closes it.
type app struct {
	cfg     config.Config
	local   *localstore.DB
	queue   *outbox.Queue
	store   remote.Store
	monitor netmon.Monitor
	syncer  syncengine.Syncer
	client  *client.Client
	logOut  io.Writer

	remoteClose func()
	pollerStop  func()
}

// openApp loads configuration and wires the full client stack. With no
// remote DSN configured the app runs fully local: mutations queue and
// sync commands report offline.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg, logOut: os.Stderr}
	if cfg.Log.Path != "" {
		a.logOut = &lumberjack.Logger{
			Filename:   cfg.Log.Path,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	a.local, err = localstore.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := a.local.InitSchema(ctx); err != nil {
		a.local.Close()
		return nil, err
	}

	a.queue = outbox.New(a.local.RawDB())
	if err := a.queue.InitSchema(ctx); err != nil {
		a.local.Close()
		return nil, err
	}

	if cfg.Remote.DSN != "" {
		pg, err := remote.Connect(ctx, cfg.Remote.DSN)
		if err != nil {
			// Unreachable at startup is the normal offline case, not
			// a fatal one. Commands that need the remote will say so.
			a.logger("pledger").Printf("WARNING: remote unreachable: %v", err)
			a.store = remote.NewMemory()
			a.monitor = netmon.NewManual(false)
		} else {
			a.store = pg
			a.remoteClose = pg.Close
			poller := netmon.NewPoller(pg.Ping, cfg.Sync.PollInterval)
			poller.Start()
			a.monitor = poller
			a.pollerStop = poller.Stop
		}
	} else {
		a.store = remote.NewMemory()
		a.monitor = netmon.NewManual(false)
	}

	a.syncer = syncengine.New(a.local, a.queue, a.store, syncengine.Options{
		UserID:      cfg.User.ID,
		PullLimit:   cfg.Sync.PullLimit,
		MaxAttempts: cfg.Sync.MaxAttempts,
		Monitor:     a.monitor,
		Logger:      a.logger("sync"),
	})

	materializer := recurring.New(a.local, a.queue, a.store, cfg.User.ID, a.logger("recurring"))
	alerter := notify.NewAlerter(a.local, &notify.LogScheduler{Logger: a.logger("notify")}, a.logger("notify"))

	a.client = client.New(client.Options{
		Local:        a.local,
		Queue:        a.queue,
		Store:        a.store,
		Syncer:       a.syncer,
		Materializer: materializer,
		Alerter:      alerter,
		Monitor:      a.monitor,
		UserID:       cfg.User.ID,
		Logger:       a.logger("client"),
	})
	return a, nil
}

func (a *app) logger(prefix string) *log.Logger {
	return log.New(a.logOut, "["+prefix+"] ", log.LstdFlags)
}

// Close releases the poller, the remote pool and the local store.
func (a *app) Close() {
	if a.pollerStop != nil {
		a.pollerStop()
	}
	if a.remoteClose != nil {
		a.remoteClose()
	}
	if a.local != nil {
		if err := a.local.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close local store: %v\n", err)
		}
	}
}

// fatal prints an error and exits, the shared failure path for all
// commands.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
