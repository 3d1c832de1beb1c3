package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/device-gate/pkg/approval"
	approvalapi "github.com/tendant/device-gate/pkg/approval/api"
	"github.com/tendant/device-gate/pkg/config"
	"github.com/tendant/device-gate/pkg/logingate"
	logingateapi "github.com/tendant/device-gate/pkg/logingate/api"
	"github.com/tendant/device-gate/pkg/notice"
	"github.com/tendant/device-gate/pkg/notification"
	"github.com/tendant/device-gate/pkg/registration"
	registrationapi "github.com/tendant/device-gate/pkg/registration/api"
	"github.com/tendant/device-gate/pkg/tokengenerator"
)

// Config aggregates all environment-driven configuration for the gate server.
type Config struct {
	DbConfig    config.DatabaseConfig
	EmailConfig config.EmailConfig
	GateConfig  config.GateConfig
}

// loadEnvFile loads environment variables from .env file if it exists.
// Only sets variables that are not already set in the environment.
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("Failed to get current working directory", "error", err)
		return
	}
	envFile := filepath.Join(cwd, ".env")

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found, using environment variables", "path", envFile)
		return
	}

	err = godotenv.Load(envFile)
	if err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}

	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func main() {

	// Create a logger with source enabled
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true, // Enables line number & file path
	}))
	slog.SetDefault(logger)

	// Load .env file if it exists (before reading environment variables)
	loadEnvFile()

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)

	// Repositories, backed by PostgreSQL unless configured otherwise
	var registrationRepo registration.RegistrationRepository
	var approvalRepo approval.ApprovalRepository
	if cfg.GateConfig.PersistenceType == "postgres" || cfg.GateConfig.PersistenceType == "postgresql" {
		dbConfig := cfg.DbConfig.ToDbConfig()
		pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DbConfig.Database, "host", cfg.DbConfig.Host, "port", cfg.DbConfig.Port, "user", cfg.DbConfig.User)
			os.Exit(-1)
		}
		registrationRepo, err = registration.NewRegistrationRepository(cfg.GateConfig.PersistenceType, registration.RepositoryConfig{DB: pool})
		if err != nil {
			slog.Error("Failed creating registration repository", "err", err)
			os.Exit(-1)
		}
		approvalRepo, err = approval.NewApprovalRepository(cfg.GateConfig.PersistenceType, approval.RepositoryConfig{DB: pool})
		if err != nil {
			slog.Error("Failed creating approval repository", "err", err)
			os.Exit(-1)
		}
	} else {
		var err error
		registrationRepo, err = registration.NewRegistrationRepository(cfg.GateConfig.PersistenceType, registration.RepositoryConfig{})
		if err != nil {
			slog.Error("Failed creating registration repository", "err", err)
			os.Exit(-1)
		}
		approvalRepo, err = approval.NewApprovalRepository(cfg.GateConfig.PersistenceType, approval.RepositoryConfig{})
		if err != nil {
			slog.Error("Failed creating approval repository", "err", err)
			os.Exit(-1)
		}
	}

	// Notification manager, registered only when notices are enabled
	approvalOpts := []approval.Option{}
	if cfg.GateConfig.NotificationsEnabled {
		notificationManager, err := notice.NewNotificationManager(notification.SMTPConfig{
			Host:     cfg.EmailConfig.Host,
			Port:     cfg.EmailConfig.Port,
			Username: cfg.EmailConfig.Username,
			Password: cfg.EmailConfig.Password,
			From:     cfg.EmailConfig.From,
			TLS:      cfg.EmailConfig.TLS,
		})
		if err != nil {
			slog.Error("Failed initialize notification manager", "err", err)
			os.Exit(-1)
		}
		approvalOpts = append(approvalOpts,
			approval.WithNotificationManager(notificationManager),
			approval.WithAdminEmail(cfg.GateConfig.AdminEmail),
		)
	}

	registrationService := registration.NewRegistrationService(registrationRepo)
	approvalService := approval.NewApprovalService(approvalRepo, approvalOpts...)

	tokenGenerator := tokengenerator.NewJwtTokenGenerator(cfg.GateConfig.JwtSecret, "device-gate", "device-gate-api")

	// Identity verifier for the login gate, seeded from DEVICE_GATE_USERS
	// entries of the form email:password separated by commas.
	identityVerifier := logingate.NewStaticVerifier()
	for _, entry := range strings.Split(os.Getenv("DEVICE_GATE_USERS"), ",") {
		email, password, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || email == "" {
			continue
		}
		identityVerifier.AddUser(logingate.Identity{
			UserID: email,
			Email:  email,
		}, password)
	}
	loginGateService := logingate.NewLoginGateService(identityVerifier, approvalService,
		logingate.WithTokenGenerator(tokenGenerator))

	registrationHandler := registrationapi.NewRegistrationHandler(registrationService)
	approvalHandler := approvalapi.NewApprovalHandler(approvalService)
	loginHandler := logingateapi.NewLoginHandler(loginGateService)

	// Public device endpoints
	server.R.Mount("/api/device", registrationapi.Handler(registrationHandler))
	server.R.Mount("/api/approval", approvalapi.Handler(approvalHandler))
	server.R.Mount("/api/auth", logingateapi.Handler(loginHandler))

	// Admin endpoints require a valid HS256 token
	jwtAuth := jwtauth.New("HS256", []byte(cfg.GateConfig.JwtSecret), nil)
	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(jwtAuth))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Mount("/api/admin/device", registrationapi.AdminHandler(registrationHandler))
		r.Mount("/api/admin/approval", approvalapi.AdminHandler(approvalHandler))
		// Manual sweep trigger for external schedulers
		r.Post("/api/admin/sweep", func(w http.ResponseWriter, req *http.Request) {
			blocked, err := registrationService.SweepExpiredTokens(req.Context())
			if err != nil {
				slog.Error("Failed sweeping expired registration tokens", "err", err)
				render.Status(req, http.StatusInternalServerError)
				render.JSON(w, req, map[string]string{"status": "error", "message": "sweep failed"})
				return
			}
			expired, err := approvalService.SweepExpired(req.Context())
			if err != nil {
				slog.Error("Failed sweeping expired approval requests", "err", err)
				render.Status(req, http.StatusInternalServerError)
				render.JSON(w, req, map[string]string{"status": "error", "message": "sweep failed"})
				return
			}
			render.JSON(w, req, map[string]interface{}{
				"status":           "success",
				"tokens_blocked":   blocked,
				"requests_expired": expired,
			})
		})
	})

	// Background sweeps for expired tokens and stale requests
	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.GateConfig.SweepSchedule, func() {
		ctx := context.Background()
		blocked, err := registrationService.SweepExpiredTokens(ctx)
		if err != nil {
			slog.Error("Failed sweeping expired registration tokens", "err", err)
		} else if blocked > 0 {
			slog.Info("Blocked registrations with expired tokens", "count", blocked)
		}
		expired, err := approvalService.SweepExpired(ctx)
		if err != nil {
			slog.Error("Failed sweeping expired approval requests", "err", err)
		} else if expired > 0 {
			slog.Info("Expired stale approval requests", "count", expired)
		}
	})
	if err != nil {
		slog.Error("Invalid sweep schedule", "schedule", cfg.GateConfig.SweepSchedule, "err", err)
		os.Exit(-1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server.Run()
}
