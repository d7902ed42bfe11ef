package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-pkgz/auth"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/workbench/internal/config"
	"github.com/workbench/internal/constants"
	"github.com/workbench/internal/db"
	"github.com/workbench/internal/dom"
	"github.com/workbench/internal/http"
	"github.com/workbench/internal/identity/local"
	"github.com/workbench/internal/jobs"
	"github.com/workbench/internal/logger"
	"github.com/workbench/internal/mail"
	"github.com/workbench/internal/persist"
	"github.com/workbench/internal/records"
	"github.com/workbench/internal/session"
)

func main() {
	// Load .env file if it exists (optional, won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.InitLogger(cfg.Environment)

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *slog.Logger) error {
	// Initialize database
	database, err := db.Init(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	var mailer mail.Sender
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		appLogger.Warn("SMTP not configured, recovery links will be logged")
		mailer = mail.NewLogSender(appLogger)
	}

	provider, err := local.New(database, mailer, local.Config{
		JWTSecret:         cfg.Auth.JWTSecret,
		AccessTokenTTL:    cfg.Auth.AccessTokenTTL,
		AutoConfirmSignUp: cfg.Auth.AutoConfirmSignUp,
	}, appLogger)
	if err != nil {
		return err
	}
	defer provider.Close()

	authService := enableFederation(cfg, provider)

	facade, err := session.New(session.Options{
		Provider:  provider,
		Records:   records.NewStore(database),
		Origin:    cfg.SiteURL,
		LoginPath: cfg.Pages.LoginPage,
		Logger:    appLogger,
	})
	if err != nil {
		return err
	}
	defer facade.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), constants.SessionInitTimeout)
	facade.Initialize(initCtx)
	cancel()

	shell, err := loadShell(cfg)
	if err != nil {
		return err
	}
	if shell != nil {
		facade.Attach(shell)
	}

	worker := jobs.NewWorker(appLogger)
	if err := worker.ScheduleEvery(constants.JobSessionRefresh, cfg.Jobs.RefreshInterval,
		jobs.NewSessionRefreshHandler(provider, cfg.Jobs.RefreshWindow, appLogger)); err != nil {
		return err
	}
	if err := worker.ScheduleEvery(constants.JobPurgeExpired, cfg.Jobs.PurgeInterval,
		jobs.NewPurgeHandler(provider, appLogger)); err != nil {
		return err
	}

	server := http.NewServer(cfg, http.Dependencies{
		Sessions: facade,
		Pages:    facade,
		Saver:    persist.NewWriter(cfg.SaveFile),
		Recovery: provider,
		Shell:    shell,
		Auth:     authService,
		Logger:   appLogger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Start(gctx)
	})
	g.Go(func() error {
		return server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// enableFederation turns on the configured OAuth providers. It returns nil
// when none are configured.
func enableFederation(cfg *config.Config, provider *local.Provider) *auth.Service {
	var clients []local.OAuthClient
	if cfg.Auth.GitHub.Enabled() {
		clients = append(clients, local.OAuthClient{Name: "github", ClientID: cfg.Auth.GitHub.ClientID, ClientSecret: cfg.Auth.GitHub.ClientSecret})
	}
	if cfg.Auth.Google.Enabled() {
		clients = append(clients, local.OAuthClient{Name: "google", ClientID: cfg.Auth.Google.ClientID, ClientSecret: cfg.Auth.Google.ClientSecret})
	}
	if len(clients) == 0 {
		return nil
	}

	return provider.EnableFederation(local.FederationConfig{
		SiteURL:       cfg.SiteURL,
		SecureCookies: cfg.Auth.SecureCookie,
		Clients:       clients,
	})
}

// loadShell parses index.html from the pages directory, if present
func loadShell(cfg *config.Config) (*dom.Document, error) {
	shell, err := dom.ParseFile(filepath.Join(cfg.Pages.Dir, "index.html"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return shell, err
}
