package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-nickname-bot/internal/bot"
	"github.com/tbourn/go-nickname-bot/internal/config"
	httpapi "github.com/tbourn/go-nickname-bot/internal/http"
	"github.com/tbourn/go-nickname-bot/internal/observability"
	"github.com/tbourn/go-nickname-bot/internal/services"
	"github.com/tbourn/go-nickname-bot/internal/store"
	"github.com/tbourn/go-nickname-bot/internal/sysutil"
	"github.com/tbourn/go-nickname-bot/internal/telegram"
)

const (
	shutdownTimeout  = 30 * time.Second
	otelFlushTimeout = 5 * time.Second
)

// transport is what the app needs from the Telegram client.
type transport interface {
	bot.Sender
	Username() string
	Ping(ctx context.Context) error
	DecodeCommand(r *http.Request) (bot.Command, bool, error)
	Poll(ctx context.Context, handle func(context.Context, bot.Command)) error
	SetWebhook(ctx context.Context, url, secret string) error
}

// newTransport is replaced in tests.
var newTransport = func(ctx context.Context, token string, lg zerolog.Logger) (transport, error) {
	c, err := telegram.New(ctx, token, telegram.WithLogger(&lg))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (long polling in development, webhook in production)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	if err := telegram.InstallLogger(lg); err != nil {
		lg.Warn().Err(err).Msg("bot api logger not installed")
	}
	lg.Info().Str("version", version).Str("config", cfg.Redacted()).Msg("starting nickname bot")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), otelFlushTimeout)
		defer cancel()
		if err := shutdownOTel(fctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		lg.Error().Err(err).Msg("startup failed")
		return err
	}
	return a.run(ctx)
}

// app holds the wired components of a running bot.
type app struct {
	cfg    config.Config
	store  *store.Store
	bot    transport
	router *bot.Router
	server *http.Server
	logger zerolog.Logger
}

func newApp(ctx context.Context, cfg config.Config, lg zerolog.Logger) (*app, error) {
	st, err := store.Open(cfg.StorageFile,
		store.WithMaxNicknameLen(cfg.NicknameMaxLen),
		store.WithLogger(lg),
	)
	if err != nil {
		return nil, err
	}
	svc := services.NewNicknameService(st, cfg.NicknameMaxLen)

	tr, err := newTransport(ctx, cfg.BotToken, lg)
	if err != nil {
		return nil, err
	}

	router := bot.NewRouter(svc, tr, bot.Options{
		BotUsername:  tr.Username(),
		CommandRPS:   cfg.CommandRPS,
		CommandBurst: cfg.CommandBurst,
		DedupeTTL:    cfg.DedupeTTL,
		Logger:       &lg,
	})

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, cfg, httpapi.Deps{
		Service:    svc,
		Bot:        tr,
		Updates:    tr,
		Dispatcher: router,
	})

	return &app{
		cfg:    cfg,
		store:  st,
		bot:    tr,
		router: router,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           engine,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
		logger: lg,
	}, nil
}

func (a *app) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", a.server.Addr)
	}
	return a.serve(ctx, ln)
}

func (a *app) mode() string {
	if a.cfg.UseWebhook() {
		return "webhook"
	}
	return "polling"
}

// serve runs the HTTP server and, in polling mode, the update poller until
// ctx is done or one of them fails. The server then drains for up to
// shutdownTimeout.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	if a.cfg.UseWebhook() {
		if err := a.bot.SetWebhook(ctx, a.cfg.Webhook.URL, a.cfg.Webhook.Secret); err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", ln.Addr().String()).Str("mode", a.mode()).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			return errors.Wrap(err, "http shutdown")
		}
		return nil
	})

	if !a.cfg.UseWebhook() {
		g.Go(func() error {
			err := a.bot.Poll(gctx, a.handleCommand)
			if err == nil && gctx.Err() == nil {
				err = errors.New("update stream closed")
			}
			return err
		})
	}

	err := g.Wait()
	if a.store.Dirty() {
		a.logger.Warn().Msg("exiting with unsaved nickname changes")
	}
	a.logger.Info().Msg("shutdown complete")
	return err
}

func (a *app) handleCommand(ctx context.Context, cmd bot.Command) {
	if err := a.router.Dispatch(ctx, cmd); err != nil {
		a.logger.Debug().Err(err).Int("update_id", cmd.UpdateID).Msg("dispatch failed")
	}
}
