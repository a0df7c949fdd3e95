// Package daemon wires the consolidator's components together and owns
// their start and stop order.
package daemon

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-consolidator/config"
	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
	"github.com/Klingon-tech/klingnet-consolidator/internal/jobstore"
	klog "github.com/Klingon-tech/klingnet-consolidator/internal/log"
	"github.com/Klingon-tech/klingnet-consolidator/internal/nodeclient"
	"github.com/Klingon-tech/klingnet-consolidator/internal/rpc"
	"github.com/Klingon-tech/klingnet-consolidator/internal/storage"
	"github.com/rs/zerolog"
)

// Daemon holds all running components.
type Daemon struct {
	cfg       *config.Config
	db        storage.DB
	jobs      *jobstore.Store
	node      *nodeclient.Client
	exec      *consolidate.Executor
	sched     *consolidate.Scheduler
	rpcServer *rpc.Server
	logger    zerolog.Logger
}

// New builds a daemon from a validated config. Nothing runs until Start.
func New(cfg *config.Config) (*Daemon, error) {
	// ── 1. Logger ───────────────────────────────────────────────────
	err := klog.Init(cfg.Log.Level, cfg.Log.JSON, klog.FileOptions{
		Path:       cfg.LogFilePath(),
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("daemon")

	// ── 2. Scheduler settings (fatal when invalid) ─────────────────
	schedCfg, err := cfg.Scheduler()
	if err != nil {
		return nil, fmt.Errorf("consolidator config: %w", err)
	}
	if err := schedCfg.Validate(); err != nil {
		return nil, fmt.Errorf("consolidator config: %w", err)
	}

	logger.Info().
		Str("node", cfg.Node.URL).
		Dur("interval", schedCfg.Interval).
		Str("feemulti", schedCfg.FeeMultiplier.String()).
		Bool("persist", schedCfg.Persist).
		Msg("Starting consolidator")

	// ── 3. Job storage ──────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.JobsDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.JobsDir(), err)
	}
	jobs := jobstore.New(db)
	logger.Info().Str("path", cfg.JobsDir()).Msg("Job database opened")

	// ── 4. Node, executor, scheduler ────────────────────────────────
	node := nodeclient.Dial(cfg.Node.URL, cfg.Node.Timeout)
	exec := consolidate.NewExecutor(node, node, cfg.SelectionPolicy())

	var store consolidate.JobStore
	if schedCfg.Persist {
		store = jobs
	}
	sched := consolidate.NewScheduler(schedCfg, node, exec, store, nil)

	d := &Daemon{
		cfg:    cfg,
		db:     db,
		jobs:   jobs,
		node:   node,
		exec:   exec,
		sched:  sched,
		logger: logger,
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		d.rpcServer = rpc.New(rpcAddr, exec, sched, cfg.RPC)
		d.rpcServer.SetCallTimeout(cfg.Node.Timeout)
		if cfg.Metrics.Enabled {
			d.rpcServer.EnableMetrics()
		}
	}

	return d, nil
}

// Start resumes a persisted job, if any, then starts serving RPC.
func (d *Daemon) Start() error {
	if d.cfg.Consolidator.Persist {
		if err := d.sched.Recover(); err != nil {
			d.logger.Warn().Err(err).Msg("Persisted job not resumed")
		}
	} else if has, err := d.jobs.Has(); err == nil && has {
		d.logger.Info().Msg("Persisted consolidate-below job ignored (consolidator-persist is off)")
	}

	if d.rpcServer != nil {
		if err := d.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
		d.logger.Info().Str("addr", d.rpcServer.Addr()).Msg("RPC server started")
	}

	d.logger.Info().Bool("job_running", d.sched.Running()).Msg("Consolidator started")
	return nil
}

// Stop shuts down in reverse order. A running job stays persisted.
func (d *Daemon) Stop() {
	if d.rpcServer != nil {
		if err := d.rpcServer.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("RPC server shutdown")
		}
	}
	d.sched.Stop()
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Closing job database")
		}
	}

	d.logger.Info().Msg("Goodbye!")
	klog.Close()
}

// RPCAddr returns the address the RPC server is listening on.
func (d *Daemon) RPCAddr() string {
	if d.rpcServer == nil {
		return ""
	}
	return d.rpcServer.Addr()
}

// Scheduler returns the recurring job scheduler.
func (d *Daemon) Scheduler() *consolidate.Scheduler {
	return d.sched
}
