package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/audit"
	"github.com/tableside/admin-auth/auth"
	"github.com/tableside/admin-auth/internal/config"
	"github.com/tableside/admin-auth/internal/repository/pg"
	"github.com/tableside/admin-auth/invites"
	"github.com/tableside/admin-auth/notify"
	"github.com/tableside/admin-auth/resets"
	"github.com/tableside/admin-auth/server"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

func main() {
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	handler, cleanup, err := buildServer(c)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

type repos struct {
	admins   admins.Repo
	sessions sessions.Repo
	invites  invites.Repo
	resets   resets.Repo
	audit    audit.Repo
}

func buildServer(c config.Config) (http.Handler, func(), error) {
	storage, cleanup, err := buildStorage(c)
	if err != nil {
		return nil, cleanup, err
	}

	codec, err := token.NewCodec(c.GetJWTSecret(),
		token.WithIssuer(c.GetAppName()),
		token.WithAccessTTL(c.GetAccessTokenTTL()),
		token.WithInviteTTL(c.GetInviteTTL()),
		token.WithResetTTL(c.GetResetTTL()),
	)
	if err != nil {
		return nil, cleanup, errors.Wrap(err, "[buildServer] NewCodec")
	}

	mailer := buildMailer(c)
	recorder := audit.NewRecorder(storage.audit, log.Logger)

	authService := auth.NewService(
		auth.Repos{Admins: storage.admins, Sessions: storage.sessions},
		codec, recorder,
		auth.WithSessionTTL(c.GetSessionTTL()),
		auth.WithLogger(log.Logger),
	)
	inviteService := invites.NewService(storage.invites, storage.admins, codec, mailer, recorder,
		invites.WithFrontendURL(c.GetFrontendURL()),
		invites.WithLogger(log.Logger),
	)
	resetService := resets.NewService(storage.resets, storage.admins, storage.sessions, codec, mailer, recorder,
		resets.WithFrontendURL(c.GetFrontendURL()),
		resets.WithLogger(log.Logger),
	)

	srv := server.New(c, authService, inviteService, resetService, log.Logger)
	return srv.Handler(), cleanup, nil
}

func buildStorage(c config.Config) (repos, func(), error) {
	cleanup := func() {}

	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, running on in-memory storage")
		return repos{
			admins:   admins.NewInMemoryRepo(),
			sessions: sessions.NewInMemoryRepo(),
			invites:  invites.NewInMemoryRepo(),
			resets:   resets.NewInMemoryRepo(),
			audit:    audit.NewInMemoryRepo(),
		}, cleanup, nil
	}

	ctx := context.Background()
	db, err := pg.NewDB(ctx, databaseURL)
	if err != nil {
		return repos{}, cleanup, errors.Wrap(err, "[buildStorage] NewDB")
	}
	cleanup = db.Close

	if err := pg.EnsureSchema(ctx, db); err != nil {
		return repos{}, cleanup, errors.Wrap(err, "[buildStorage] EnsureSchema")
	}

	return repos{
		admins:   pg.NewAdminRepo(db),
		sessions: pg.NewSessionRepo(db),
		invites:  pg.NewInviteRepo(db),
		resets:   pg.NewResetRepo(db),
		audit:    pg.NewAuditRepo(db),
	}, cleanup, nil
}

func buildMailer(c config.Config) notify.Mailer {
	if c.GetSmtpHost() == "" {
		log.Warn().Msg("SMTP_HOST not set, emails will be logged instead of sent")
		return notify.NopMailer{}
	}
	return notify.NewSMTPMailer(c.GetSmtpHost(), c.GetSmtpPort(), c.GetSmtpAccount(), c.GetSmtpPassword(), c.GetSmtpSender())
}

func setupLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
