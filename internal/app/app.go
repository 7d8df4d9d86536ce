// Package app wires every component from one Config. Nothing in the tree
// reaches for package-level state; the App is built once and passed around.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctor-sync/internal/config"
	"proctor-sync/internal/domain"
	"proctor-sync/internal/examity"
	"proctor-sync/internal/hooks"
	"proctor-sync/internal/lms"
	"proctor-sync/internal/lms/wpdb"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/metrics"
	"proctor-sync/internal/provision"
	"proctor-sync/internal/report"
	"proctor-sync/internal/schedule"
	"proctor-sync/internal/server"
	"proctor-sync/internal/sso"
	"proctor-sync/internal/store"
	"proctor-sync/internal/store/redis"
	"proctor-sync/internal/store/sqlite"
	psync "proctor-sync/internal/sync"
	"proctor-sync/internal/token"
)

type closer interface{ Close() error }

type pinger interface {
	Ping(ctx context.Context) error
}

// Runtime is the part of the wiring that depends on settings and is rebuilt
// when they are saved.
type Runtime struct {
	Config config.Config
	Client *examity.Client // nil when the API is not configured
	Tokens *token.Cache
	Sync   *psync.Synchronizer
	Orch   *provision.Orchestrator
}

type App struct {
	Env     config.Config // as loaded from the environment
	Options store.Options
	LMS     lms.Source
	Hooks   *hooks.Registry
	Slot    *schedule.Slot
	Runner  *schedule.Runner
	Server  *server.Server
	Metrics metrics.Recorder
	Report  *report.Writer
	Logger  *slog.Logger

	registry *prometheus.Registry
	rt       atomic.Pointer[Runtime]
	closers  []closer
	pingers  []pinger
}

// Options for New.
type Options struct {
	// Store overrides the options store chosen from the config.
	Store store.Options
	// LMS overrides the LMS source chosen from the config.
	LMS lms.Source
	Now func() time.Time
}

// New builds the application. Close releases what it opened.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Env: cfg, Logger: logger, Hooks: hooks.NewRegistry()}

	var err error
	if a.Options, err = a.openStore(ctx, cfg, opts.Store); err != nil {
		a.Close()
		return nil, err
	}
	if a.LMS, err = a.openLMS(cfg, opts.LMS); err != nil {
		a.Close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.registry)

	a.Report = &report.Writer{Dir: cfg.ReportDir, Compress: cfg.ReportCompress}
	sftpCfg := report.SFTPConfig{
		Host:                  cfg.SFTPHost,
		Port:                  cfg.SFTPPort,
		User:                  cfg.SFTPUser,
		Pass:                  cfg.SFTPPass,
		RemoteDir:             cfg.SFTPDir,
		InsecureIgnoreHostKey: cfg.SFTPInsecureIgnoreHostKey,
		KnownHostsFile:        cfg.SFTPKnownHosts,
	}
	if sftpCfg.Enabled() {
		a.Report.Uploader = report.SFTPUploader{Config: sftpCfg}
	}

	if err := a.Reload(ctx, opts.Now); err != nil {
		a.Close()
		return nil, err
	}

	a.Slot = &schedule.Slot{Store: a.Options}
	a.Runner = &schedule.Runner{
		Slot:     a.Slot,
		Hooks:    a.Hooks,
		Interval: func() time.Duration { return a.Runtime().Config.ProvisionInterval },
		Now:      opts.Now,
	}
	a.registerHooks()

	a.Server = &server.Server{
		Hooks:      a.Hooks,
		SSO:        a.handoff(),
		HookSecret: cfg.HookSecret,
		Metrics:    promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Health:     a.Ping,
		AppName:    config.PluginName,
		Logger:     logger,
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, override store.Options) (store.Options, error) {
	switch {
	case override != nil:
		return override, nil
	case cfg.RedisAddr != "":
		rcfg := redis.DefaultConfig(cfg.RedisAddr)
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB
		s := redis.NewStore(redis.NewClient(rcfg), "")
		a.closers = append(a.closers, s)
		a.pingers = append(a.pingers, s)
		if err := s.Ping(ctx); err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		return s, nil
	case cfg.StateDatabaseFile != "":
		s, err := sqlite.NewStore(cfg.StateDatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("app: state db: %w", err)
		}
		a.closers = append(a.closers, s)
		a.pingers = append(a.pingers, s)
		return s, nil
	default:
		a.Logger.Warn("no state store configured; token and schedule are kept in memory")
		return store.NewMemory(), nil
	}
}

func (a *App) openLMS(cfg config.Config, override lms.Source) (lms.Source, error) {
	if override != nil {
		return override, nil
	}
	if cfg.WPDatabaseFile == "" {
		a.Logger.Warn("WP_DATABASE_FILE not set; LMS catalog is empty")
		return lms.NewCatalog(), nil
	}
	src, err := wpdb.Open(cfg.WPDatabaseFile, cfg.WPTablePrefix, cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("app: wordpress db: %w", err)
	}
	a.closers = append(a.closers, src)
	a.pingers = append(a.pingers, src)
	return src, nil
}

// Runtime returns the current settings-dependent components.
func (a *App) Runtime() *Runtime { return a.rt.Load() }

// Reload re-reads host-managed options over the environment config and
// rebuilds the client, token cache, synchronizers and orchestrator.
func (a *App) Reload(ctx context.Context, now func() time.Time) error {
	cfg, err := config.ApplyOptions(ctx, a.Env, a.Options)
	if err != nil {
		return err
	}

	rt := &Runtime{Config: cfg}
	client, err := examity.New(examity.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: config.PluginName + "/" + config.PluginVersion,
		Debug:     cfg.APIDebug,
		Logger:    a.Logger,
		RateLimit: cfg.APIRateLimit,
	})
	switch {
	case err == nil:
		rt.Client = client
	case errors.Is(err, examity.ErrNotConfigured):
		a.Logger.Warn("examity api not configured; provisioning is disabled", "error", err)
	default:
		return err
	}

	rt.Tokens = &token.Cache{
		Store:     a.Options,
		ClientID:  cfg.ClientID,
		SecretKey: cfg.SecretKey,
		Location:  cfg.Location(),
		Now:       now,
		Logger:    a.Logger,
		Metrics:   a.Metrics,
	}
	if rt.Client != nil {
		rt.Tokens.Fetcher = rt.Client
	}

	rt.Sync = &psync.Synchronizer{
		Client: func() (psync.API, error) {
			if rt.Client == nil {
				return nil, examity.ErrNotConfigured
			}
			return rt.Client, nil
		},
		Tokens:  rt.Tokens,
		LMS:     a.LMS,
		SiteID:  cfg.SiteID,
		Window:  psync.ParseExamWindow(cfg.ExamWindow),
		Now:     now,
		Metrics: a.Metrics,
	}
	rt.Orch = &provision.Orchestrator{
		Sync:    rt.Sync,
		LMS:     a.LMS,
		Workers: cfg.ProvisionWorkers,
		Metrics: a.Metrics,
		Report:  a.Report,
		Now:     now,
	}
	a.rt.Store(rt)
	return nil
}

func (a *App) registerHooks() {
	a.Hooks.On(hooks.ContentViewedEvent, func(ctx context.Context, ev hooks.Event) error {
		cv := ev.(hooks.ContentViewed)
		a.Runtime().Orch.ProvisionObject(ctx, cv.PostID, cv.ViewerID)
		return nil
	})
	a.Hooks.On(hooks.ScheduledTickEvent, func(ctx context.Context, _ hooks.Event) error {
		run := a.Runtime().Orch.ProvisionAll(ctx)
		if len(run.Errors) > 0 {
			return fmt.Errorf("batch %s: %w", run.ID, errors.Join(run.Errors...))
		}
		return nil
	})
	a.Hooks.On(hooks.SaveTriggeredEvent, func(ctx context.Context, _ hooks.Event) error {
		if err := a.Reload(ctx, a.Runner.Now); err != nil {
			return err
		}
		now := time.Now()
		if a.Runner.Now != nil {
			now = a.Runner.Now()
		}
		_, err := a.Slot.Reschedule(ctx, now, a.Runtime().Config.ProvisionInterval)
		return err
	})
}

func (a *App) handoff() *sso.Handoff {
	return &sso.Handoff{
		Settings: func() sso.Settings {
			c := a.Runtime().Config
			return sso.Settings{URL: c.SSOURL, Key: c.SSOKey, IV: c.SSOIV}
		},
		Tokens: tokenSource{a},
		Users:  a.LMS,
		EnsureUser: func(ctx context.Context, u domain.User) bool {
			return a.Runtime().Sync.SyncUser(ctx, u).OK()
		},
	}
}

// tokenSource always asks the current runtime's cache.
type tokenSource struct{ a *App }

func (t tokenSource) Get(ctx context.Context) (string, bool) {
	return t.a.Runtime().Tokens.Get(ctx)
}

func (t tokenSource) Configured() bool {
	return t.a.Runtime().Tokens.Configured()
}

// Ping checks every backing store.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run starts the scheduler and serves HTTP on addr until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	ctx = logx.WithContext(ctx, a.Logger)

	if _, err := a.Slot.Reschedule(ctx, time.Now(), a.Runtime().Config.ProvisionInterval); err != nil {
		a.Logger.Error("initial schedule failed", "error", err)
	}
	runnerDone := make(chan error, 1)
	go func() { runnerDone <- a.Runner.Run(ctx) }()

	app := a.Server.App()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	a.Logger.Info("server listening", "addr", addr)

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := app.ShutdownWithContext(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	a.Server.Wait()
	<-runnerDone
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Close releases stores in reverse opening order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Error("close", "error", err)
		}
	}
	a.closers = nil
}
