// Package main is the entry point for the lead form API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aivanceworks/leadform/internal/cache"
	"github.com/aivanceworks/leadform/internal/config"
	"github.com/aivanceworks/leadform/internal/contact"
	"github.com/aivanceworks/leadform/internal/database"
	"github.com/aivanceworks/leadform/internal/handlers"
	"github.com/aivanceworks/leadform/internal/mail"
	"github.com/aivanceworks/leadform/internal/newsletter"
	"github.com/aivanceworks/leadform/internal/ratelimit"
	"github.com/aivanceworks/leadform/internal/repository"
	"github.com/aivanceworks/leadform/internal/security"
	"github.com/aivanceworks/leadform/internal/server"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// connectTimeout bounds startup connections to PostgreSQL and Redis.
const connectTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel).With("env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := newTransport(cfg, log)
	if err != nil {
		return err
	}

	mailer, err := mail.NewMailer(transport, mail.Config{
		From: cfg.Email.FromAddress,
		Team: cfg.Email.TeamAddress,
		Site: mail.Site{
			Name:         cfg.Site.Name,
			URL:          cfg.Site.URL,
			ContactEmail: cfg.Email.TeamAddress,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}

	contactLimiter, err := ratelimit.NewSlidingWindow(limiterConfig(cfg.Contact))
	if err != nil {
		return fmt.Errorf("invalid contact rate limit: %w", err)
	}
	defer contactLimiter.Close()

	newsletterLimiter, err := ratelimit.NewSlidingWindow(limiterConfig(cfg.Newsletter))
	if err != nil {
		return fmt.Errorf("invalid newsletter rate limit: %w", err)
	}
	defer newsletterLimiter.Close()

	srv := server.New(cfg, log)

	store, closeStore, err := newSubscriberStore(ctx, cfg, log, srv.HealthHandler())
	if err != nil {
		return err
	}
	defer closeStore()

	sanitizer := security.NewSanitizer(security.Config{BlockedDomains: cfg.Security.BlockedEmailDomains})
	location := cfg.Site.Location()

	srv.SetContactService(contact.NewService(contactLimiter, mailer, log,
		contact.WithFallbackEmail(cfg.Email.TeamAddress),
		contact.WithLocation(location),
		contact.WithSanitizer(sanitizer),
	))
	srv.SetNewsletterService(newsletter.NewService(newsletterLimiter, store, mailer, log,
		newsletter.WithLocation(location),
		newsletter.WithSanitizer(sanitizer),
	))

	log.Info("forms configured",
		"contact_requests", cfg.Contact.Requests,
		"contact_window", cfg.Contact.Window.String(),
		"newsletter_requests", cfg.Newsletter.Requests,
		"newsletter_window", cfg.Newsletter.Window.String(),
		"email_provider", cfg.Email.Provider,
		"timezone", location.String(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func limiterConfig(c config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		Requests:        c.Requests,
		Window:          c.Window,
		CleanupInterval: c.CleanupInterval,
	}
}

// newTransport selects the mail provider.
func newTransport(cfg *config.Config, log *logger.Logger) (mail.Transport, error) {
	switch cfg.Email.Provider {
	case config.EmailProviderLog:
		log.Warn("email provider is log; no mail will be delivered")
		return mail.NewLogTransport(log), nil
	default:
		t, err := mail.NewResendTransport(mail.ResendConfig{
			APIKey:        cfg.Email.ResendAPIKey,
			BaseURL:       cfg.Email.ResendBaseURL,
			Timeout:       cfg.Email.Timeout,
			RatePerSecond: cfg.Email.RatePerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resend transport: %w", err)
		}
		return t, nil
	}
}

// newSubscriberStore picks PostgreSQL, optionally fronted by Redis, or
// falls back to process memory when no database is configured. The
// returned func releases any connections.
func newSubscriberStore(ctx context.Context, cfg *config.Config, log *logger.Logger, health *handlers.HealthHandler) (repository.SubscriberRepository, func(), error) {
	if !cfg.DatabaseEnabled() {
		log.Warn("database not configured; subscribers are kept in memory")
		return repository.NewMemorySubscriberRepository(nil), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := database.NewPool(connectCtx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	migrator, err := database.NewMigrator(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	applied, err := migrator.Up(connectCtx)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("database connected", "host", cfg.Database.Host, "migrations_applied", applied)
	health.AddCheck("database", pool.HealthCheck)

	var repo repository.SubscriberRepository = repository.NewPostgresSubscriberRepository(pool)
	closers := []func(){pool.Close}

	if cfg.RedisEnabled() {
		rc, err := cache.NewRedisCache(connectCtx, &cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable; continuing without subscriber cache", "error", err)
		} else {
			repo = repository.NewCachedSubscriberRepository(repo,
				cache.NewSubscriberCache(rc, "", cfg.Redis.CacheTTL))
			health.AddCheck("redis", rc.HealthCheck)
			closers = append(closers, func() { _ = rc.Close() })
			log.Info("redis connected", "host", cfg.Redis.Host)
		}
	}

	return repo, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
