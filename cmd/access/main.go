package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-access/pkg/account"
	"github.com/tendant/simple-access/pkg/audit"
	"github.com/tendant/simple-access/pkg/config"
	"github.com/tendant/simple-access/pkg/dbtx"
	"github.com/tendant/simple-access/pkg/externalprovider"
	"github.com/tendant/simple-access/pkg/hasher"
	"github.com/tendant/simple-access/pkg/iam"
	"github.com/tendant/simple-access/pkg/login"
	"github.com/tendant/simple-access/pkg/metrics"
	"github.com/tendant/simple-access/pkg/passwordreset"
	"github.com/tendant/simple-access/pkg/ratelimit"
	"github.com/tendant/simple-access/pkg/sessions"
	"github.com/tendant/simple-access/pkg/tokengenerator"
)

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: !cfg.IsProduction()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Server))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := cfg.Database.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User, "err", err)
		os.Exit(-1)
	}
	defer pool.Close()
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	accessExpiry, _ := cfg.JWT.ParseAccessTokenExpiry()
	refreshExpiry, _ := cfg.JWT.ParseRefreshTokenExpiry()
	resetExpiry, _ := cfg.JWT.ParseResetTokenExpiry()
	stateTTL, _ := cfg.Redis.ParseStateTTL()
	sweepInterval, _ := cfg.Sweep.ParseInterval()
	revokedAge, _ := cfg.Sweep.ParseRevokedAge()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	pwHasher := hasher.NewBcryptHasher()
	tokens := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret, cfg.JWT.Issuer,
		tokengenerator.WithAccessTokenExpiry(accessExpiry),
		tokengenerator.WithRefreshTokenExpiry(refreshExpiry),
		tokengenerator.WithResetTokenExpiry(resetExpiry),
		tokengenerator.WithHasher(pwHasher),
	)
	cookies := tokengenerator.NewRefreshCookieSetter(cfg.JWT.RefreshCookiePath, refreshExpiry)
	cookies.Secure = cfg.JWT.CookieSecure
	cookies.SameSite = cfg.JWT.CookieSameSite()

	runner := dbtx.NewPgxRunner(pool)
	accounts := account.NewPostgresRepository(pool)
	sessionRepo := sessions.NewPostgresRepository(pool)
	sessionService := sessions.NewService(sessionRepo)
	iamService := iam.NewService(iam.NewSQLRepository(sqlDB))

	loginService := login.NewService(accounts, tokens, sessionService, audit.NewPostgresSink(pool), iamService, runner,
		login.WithHasher(pwHasher), login.WithMetrics(recorder))

	var notifier passwordreset.Notifier = passwordreset.LogNotifier{}
	if cfg.Email.Host != "" {
		emailNotifier, err := passwordreset.NewEmailNotifier(cfg.Email)
		if err != nil {
			slog.Error("Failed creating email notifier", "host", cfg.Email.Host, "err", err)
			os.Exit(-1)
		}
		notifier = emailNotifier
	}
	resetService := passwordreset.NewService(passwordreset.NewPostgresRepository(pool), accounts, sessionService, tokens, runner,
		passwordreset.WithHasher(pwHasher),
		passwordreset.WithNotifier(notifier),
		passwordreset.WithResetURL(cfg.Frontend.PasswordResetURL),
		passwordreset.WithMetrics(recorder),
	)

	var providers []externalprovider.Provider
	if cfg.Google.Enabled() {
		providers = append(providers, externalprovider.NewGoogleProvider(cfg.Google))
	}
	if cfg.Microsoft.Enabled() {
		providers = append(providers, externalprovider.NewMicrosoftProvider(cfg.Microsoft))
	}
	socialHandle := externalprovider.NewHandle(
		externalprovider.NewLinker(accounts, externalprovider.NewPostgresRepository(pool)),
		loginService,
		externalprovider.NewRedisStateStore(rdb, ""),
		cookies,
		cfg.Frontend.CallbackURL,
		externalprovider.WithProviders(providers...),
		externalprovider.WithStateTTL(stateTTL),
	)

	limiter := ratelimit.NewMiddleware(cfg.RateLimit)
	go limiter.Limiter().Run(ctx)

	sweeper := sessions.NewSweeper(sessionRepo, sweepInterval, revokedAge)
	sweeper.Observe = recorder.TokensSwept
	go sweeper.Run(ctx)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	server.R.Handle("/metrics", metrics.Handler(registry))

	loginHandle := login.NewHandle(loginService, cookies, login.WithRateLimit(limiter.Handler))
	resetHandle := passwordreset.NewHandle(resetService)
	iamHandle := iam.NewHandle(iamService, login.AccountIDFromContext)

	server.R.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(recorder.Instrument)
		loginHandle.Routes(r)
		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			resetHandle.Routes(r)
		})
		socialHandle.Routes(r)
	})
	server.R.Route("/api/v1/iam", func(r chi.Router) {
		r.Use(recorder.Instrument)
		r.Use(login.AuthMiddleware(loginService))
		iamHandle.Routes(r)
	})

	slog.Info("Starting simple-access", "env", cfg.Server.Environment, "providers", len(providers))
	server.Run()
	resetService.Wait()
}
