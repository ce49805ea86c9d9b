package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bluetaphq/bluetap/internal/channel"
	"github.com/bluetaphq/bluetap/internal/channel/bluebubbles"
	"github.com/bluetaphq/bluetap/internal/config"
	"github.com/bluetaphq/bluetap/internal/dispatch"
	"github.com/bluetaphq/bluetap/internal/events"
	"github.com/bluetaphq/bluetap/internal/handlers"
	"github.com/bluetaphq/bluetap/internal/healthcheck"
	webhookchecker "github.com/bluetaphq/bluetap/internal/healthcheck/checkers/webhook"
	"github.com/bluetaphq/bluetap/internal/logger"
	"github.com/bluetaphq/bluetap/internal/media"
	"github.com/bluetaphq/bluetap/internal/notify"
	"github.com/bluetaphq/bluetap/internal/pairing"
	"github.com/bluetaphq/bluetap/internal/routing"
	"github.com/bluetaphq/bluetap/internal/server"
	"github.com/bluetaphq/bluetap/internal/version"
)

func runServe(cfg config.Config) {
	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideDBConn,
			providePairingStore,
			provideMailer,
			providePairingService,
			provideMediaStore,
			provideDispatcher,
			channel.NewRegistry,
			provideRouteResolver,
			provideRecorder,
			providePolicyEngine,
			provideManager,
			provideWebhookHandler,
			provideCheckers,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideTargetsHandler),
			provideServerHandler(providePairingHandler),
			provideServerHandler(provideChecksHandler),
			provideServer,
		),
		fx.Invoke(
			registerTargets,
			startManager,
			startCron,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(cfg.Postgres.DSN)
	if dsn == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func providePairingStore(log *slog.Logger, pool *pgxpool.Pool) (pairing.Store, error) {
	if pool == nil {
		log.Warn("postgres.dsn not configured, pairing state is in-memory and lost on restart")
		return pairing.NewMemoryStore(), nil
	}
	if err := pairing.Migrate(pool); err != nil {
		return nil, err
	}
	return pairing.NewPostgresStore(pool), nil
}

func provideMailer(log *slog.Logger, cfg config.Config) *notify.Mailer {
	return notify.NewMailer(log, notify.Config{
		Host:     cfg.Notify.Host,
		Port:     cfg.Notify.Port,
		Username: cfg.Notify.Username,
		Password: cfg.Notify.Password,
		Security: cfg.Notify.Security,
		From:     cfg.Notify.From,
		To:       cfg.Notify.To,
	})
}

func providePairingService(log *slog.Logger, store pairing.Store, mailer *notify.Mailer) *pairing.Service {
	svc := pairing.NewService(log, store, 0)
	if mailer.Enabled() {
		svc = svc.WithNotifier(mailer)
	}
	return svc
}

func provideMediaStore(log *slog.Logger, cfg config.Config) (*media.DiskStore, error) {
	return media.NewDiskStore(log, cfg.Media.Dir)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) dispatch.Dispatcher {
	return dispatch.NewHTTPDispatcher(log, cfg.Dispatch.AgentEndpoint, cfg.Dispatch.Timeout())
}

func provideRouteResolver() *routing.Resolver { return routing.NewResolver("") }

func provideRecorder(log *slog.Logger) *events.Recorder { return events.NewRecorder(log, nil, 0) }

func providePolicyEngine(log *slog.Logger, pairingService *pairing.Service) *channel.PolicyEngine {
	return channel.NewPolicyEngine(log, pairingService)
}

func provideManager(log *slog.Logger, registry *channel.Registry, policy *channel.PolicyEngine, resolver *routing.Resolver, dispatcher dispatch.Dispatcher, recorder *events.Recorder) *channel.Manager {
	return channel.NewManager(log, registry, policy, resolver, dispatcher).WithRecorder(recorder)
}

func provideWebhookHandler(log *slog.Logger, registry *channel.Registry, manager *channel.Manager) *bluebubbles.WebhookHandler {
	return bluebubbles.NewWebhookHandler(log, registry, manager)
}

func provideCheckers(log *slog.Logger, manager *channel.Manager) []healthcheck.Checker {
	return []healthcheck.Checker{webhookchecker.NewChecker(log, manager)}
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideTargetsHandler(log *slog.Logger, manager *channel.Manager) *handlers.TargetsHandler {
	return handlers.NewTargetsHandler(log, manager)
}

func providePairingHandler(log *slog.Logger, pairingService *pairing.Service, cfg config.Config) *handlers.PairingHandler {
	ids := make([]string, 0, len(cfg.Accounts))
	for _, account := range cfg.Accounts {
		ids = append(ids, account.ID)
	}
	return handlers.NewPairingHandler(log, pairingService, ids)
}

func provideChecksHandler(log *slog.Logger, checkers []healthcheck.Checker) *handlers.ChecksHandler {
	return handlers.NewChecksHandler(log, checkers)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
	Webhook  *bluebubbles.WebhookHandler
}

func provideServer(params serverParams) *server.Server {
	all := make([]server.Handler, 0, len(params.Handlers)+1)
	all = append(all, params.Handlers...)
	// The webhook claims a catch-all route, so it registers last.
	all = append(all, params.Webhook)
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, all)
}

func registerTargets(log *slog.Logger, cfg config.Config, manager *channel.Manager, store *media.DiskStore) error {
	for _, account := range cfg.Accounts {
		target := bluebubbles.BuildTarget(log, channelAccount(cfg, account), store)
		if _, err := manager.RegisterTarget(target); err != nil {
			return fmt.Errorf("register account %s: %w", account.ID, err)
		}
	}
	return nil
}

// channelAccount maps one configured account onto the channel layer's typed
// view. The media cap falls back to the global media setting.
func channelAccount(cfg config.Config, account config.Account) channel.AccountConfig {
	maxBytes := account.MaxAttachmentBytes
	if maxBytes <= 0 {
		maxBytes = cfg.Media.MaxAttachmentBytes
	}
	return channel.AccountConfig{
		ID:                 account.ID,
		AgentID:            account.AgentID,
		WebhookPath:        account.WebhookPath,
		WebhookPassword:    account.WebhookPassword,
		ServerURL:          account.ServerURL,
		ServerPassword:     account.ServerPassword,
		DMPolicy:           channel.Policy(account.DMPolicy),
		GroupPolicy:        channel.Policy(account.GroupPolicy),
		AllowFrom:          account.AllowFrom,
		GroupAllowFrom:     account.GroupAllowFrom,
		MaxAttachmentBytes: maxBytes,
		ChunkLimit:         account.ChunkLimit,
		ChunkerMode:        channel.ChunkerMode(account.ChunkerMode),
	}
}

func startManager(lc fx.Lifecycle, manager *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { manager.Start(ctx); return nil },
		OnStop:  func(stopCtx context.Context) error { cancel(); return manager.Shutdown(stopCtx) },
	})
}

func startCron(lc fx.Lifecycle, log *slog.Logger, pairingService *pairing.Service, checkers []healthcheck.Checker) error {
	c := cron.New()
	_, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := pairingService.SweepExpired(ctx); err != nil {
			log.Warn("pairing sweep failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule pairing sweep: %w", err)
	}
	_, err = c.AddFunc("@every 15m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		var results []healthcheck.CheckResult
		for _, checker := range checkers {
			results = append(results, checker.ListChecks(ctx)...)
		}
		summary := healthcheck.Summarize(results)
		log.Info("healthcheck summary",
			slog.String("status", summary.Status),
			slog.Int("ok", summary.OK),
			slog.Int("warn", summary.Warn),
			slog.Int("error", summary.Error))
	})
	if err != nil {
		return fmt.Errorf("schedule healthcheck summary: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting bluetap %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
