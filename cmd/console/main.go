package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/capmis/capmis-console/internal/capmis"
	"github.com/capmis/capmis-console/internal/cards"
	"github.com/capmis/capmis-console/internal/config"
	"github.com/capmis/capmis-console/internal/ctxutil"
	"github.com/capmis/capmis-console/internal/jobs"
	"github.com/capmis/capmis-console/internal/logging"
	"github.com/capmis/capmis-console/internal/observability"
	"github.com/capmis/capmis-console/internal/permissions"
	"github.com/capmis/capmis-console/internal/session"
	"github.com/capmis/capmis-console/internal/web"
)

var release = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, relying on process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		lg.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flush()

	ctxutil.DefaultAPITimeout = cfg.APITimeout

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// token source closes over the store, which needs the client first
	var store *session.Store
	cli := capmis.New(cfg.BackendURL,
		capmis.WithHTTPClient(&http.Client{}),
		capmis.WithTokenSource(func() string {
			if store == nil {
				return ""
			}
			return store.Token()
		}),
		capmis.WithLogger(lg.Named("capmis")),
	)

	backend := session.SelectBackend(lg.Named("session"),
		session.NewFileBackend(cfg.TokenDir),
		session.NewMemoryBackend(),
	)
	store = session.New(cli, backend, lg.Named("session"))

	resumeCtx, cancel := ctxutil.WithAPITimeout(ctx)
	if err := store.Resume(resumeCtx); err != nil {
		lg.Sugar.Infow("stored session invalid, starting logged out", "err", err)
	}
	cancel()

	wizards := cards.NewManager(cli, lg.Named("cards"), cfg.GenerateTimeout)
	studio := permissions.NewStudio(cli, lg.Named("permissions"))

	runner := jobs.New(ctx)
	jobs.StartOverdueScan(runner, cfg.OverdueScan, store, studio, lg.Named("jobs"))

	srv := web.NewServer(cli, store, wizards, studio, backend, lg.Named("web"), cfg.Location)
	web.Start(ctx, cfg.HTTPAddr, srv.Router(), lg.Base)
	lg.Sugar.Infow("console started",
		"addr", cfg.HTTPAddr,
		"backend", cfg.BackendURL,
		"env", cfg.Env,
		"storage", backend.Name(),
	)

	<-ctx.Done()
	lg.Sugar.Info("shutting down")
}
