package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-quotes/auth"
	"github.com/diewo77/go-quotes/internal/config"
	"github.com/diewo77/go-quotes/internal/db"
	"github.com/diewo77/go-quotes/internal/logger"
	"github.com/diewo77/go-quotes/internal/metrics"
	"github.com/diewo77/go-quotes/internal/models"
	"github.com/diewo77/go-quotes/internal/notify"
	"github.com/diewo77/go-quotes/internal/policy"
	"github.com/diewo77/go-quotes/internal/services"
	"github.com/diewo77/go-quotes/internal/store"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.App.LogLevel, Pretty: cfg.App.LogPretty})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	dbConn, err := db.Open(cfg.Database, cfg.App.Dev && cfg.App.LogLevel == "debug", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migrations completed")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
		log.Info().Msg("seeding completed")
		return
	}

	if cfg.App.Migrations {
		if err := db.Migrate(dbConn); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("migrations completed")
	}
	// Profiles and permissions are reset to their defaults on every start.
	if err := db.Seed(dbConn); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}

	app := NewApp(buildDeps(cfg, dbConn, log))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("dev", cfg.App.Dev).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped gracefully")
}

// buildDeps wires the configuration into the application's collaborators.
func buildDeps(cfg *config.Config, dbConn *gorm.DB, log zerolog.Logger) AppDeps {
	sessions := auth.NewSessions(cfg.Session.Secret, time.Duration(cfg.Session.TTLHours)*time.Hour)
	sessions.Secure = cfg.Session.SecureCookie
	sessions.Verifier = func(ctx context.Context, uid uint) bool {
		var count int64
		dbConn.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Count(&count)
		return count > 0
	}
	if cfg.Session.Secret == "" {
		log.Warn().Msg("SESSION_SECRET not set, using the development secret")
	}

	var mailer services.Mailer = notify.LogMailer{Logger: log}
	if cfg.SMTP.Enabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  time.Duration(cfg.SMTP.Timeout) * time.Second,
		})
	} else {
		log.Warn().Msg("SMTP_HOST not set, customer emails are only logged")
	}

	gate := policy.NewAuthGate(dbConn, time.Duration(cfg.App.ProfileCacheTTL)*time.Second)
	return AppDeps{
		DB:       dbConn,
		Sessions: sessions,
		Gate:     gate,
		Services: services.Deps{
			Store:    store.New(dbConn, time.Now),
			Gate:     gate,
			Mailer:   mailer,
			Activity: notify.NewActivityStore(dbConn, log),
			Metrics:  metrics.New(prometheus.DefaultRegisterer),
			Logger:   log,
			BaseURL:  cfg.App.BaseURL,
			Site: notify.Site{
				Name:         cfg.Site.Name,
				ContactEmail: cfg.Site.ContactEmail,
				Lang:         cfg.Site.Lang,
			},
			Now: time.Now,
		},
		Gatherer: prometheus.DefaultGatherer,
		Dev:      cfg.App.Dev,
	}
}
