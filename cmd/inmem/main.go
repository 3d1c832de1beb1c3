// Package main runs the device gate without a database using in-memory repositories.
// This is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Note: All data is lost when the server stops. For production, use cmd/devicegate with PostgreSQL.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/device-gate/pkg/approval"
	approvalapi "github.com/tendant/device-gate/pkg/approval/api"
	"github.com/tendant/device-gate/pkg/logingate"
	logingateapi "github.com/tendant/device-gate/pkg/logingate/api"
	"github.com/tendant/device-gate/pkg/notification"
	"github.com/tendant/device-gate/pkg/registration"
	registrationapi "github.com/tendant/device-gate/pkg/registration/api"
	"github.com/tendant/device-gate/pkg/tokengenerator"
)

const (
	jwtSecret = "inmem-dev-secret-change-in-production"
	baseURL   = "http://localhost:4000"
)

func main() {
	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting In-Memory Device Gate (no database required)")
	slog.Info(strings.Repeat("=", 60))

	// In-memory repositories
	registrationRepo := registration.NewInMemRegistrationRepository()
	approvalRepo := approval.NewInMemApprovalRepository()

	// Notices land in a mock notifier so nothing leaves the process
	notificationManager := notification.NewNotificationManager()
	mockNotifier := &notification.MockNotifier{}
	notificationManager.RegisterNotifier(notification.EmailSystem, mockNotifier)
	for _, noticeType := range []notification.NoticeType{
		notification.DeviceRequestCreatedNotice,
		notification.DeviceApprovedNotice,
		notification.DeviceBlockedNotice,
	} {
		err := notificationManager.RegisterNotification(noticeType, notification.EmailSystem, notification.NoticeTemplate{
			Subject: string(noticeType),
			Text:    "{{.DeviceName}} ({{.DeviceID}})",
		})
		if err != nil {
			slog.Error("Failed registering notice", "type", noticeType, "err", err)
			os.Exit(-1)
		}
	}

	registrationService := registration.NewRegistrationService(registrationRepo)
	approvalService := approval.NewApprovalService(approvalRepo,
		approval.WithNotificationManager(notificationManager),
		approval.WithAdminEmail("admin@example.com"),
	)

	// Demo users
	identityVerifier := logingate.NewStaticVerifier()
	identityVerifier.AddUser(logingate.Identity{
		UserID: "admin@example.com",
		Name:   "Admin",
		Email:  "admin@example.com",
	}, "password123")
	identityVerifier.AddUser(logingate.Identity{
		UserID: "user@example.com",
		Name:   "Demo User",
		Email:  "user@example.com",
	}, "password123")

	tokenGenerator := tokengenerator.NewJwtTokenGenerator(jwtSecret, "device-gate", "device-gate-api")
	loginGateService := logingate.NewLoginGateService(identityVerifier, approvalService,
		logingate.WithTokenGenerator(tokenGenerator))

	registrationHandler := registrationapi.NewRegistrationHandler(registrationService)
	approvalHandler := approvalapi.NewApprovalHandler(approvalService)
	loginHandler := logingateapi.NewLoginHandler(loginGateService)

	// Setup HTTP server
	appConfig := app.DefaultAppConfig()
	appConfig.Port = 4000
	server := app.NewApp(
		app.WithAppConfig(appConfig),
		app.WithCors(&cors.Options{
			AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	server.R.Mount("/api/device", registrationapi.Handler(registrationHandler))
	server.R.Mount("/api/approval", approvalapi.Handler(approvalHandler))
	server.R.Mount("/api/auth", logingateapi.Handler(loginHandler))

	jwtAuth := jwtauth.New("HS256", []byte(jwtSecret), nil)
	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(jwtAuth))
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Mount("/api/admin/device", registrationapi.AdminHandler(registrationHandler))
		r.Mount("/api/admin/approval", approvalapi.AdminHandler(approvalHandler))
	})

	slog.Info(strings.Repeat("=", 60))
	slog.Info("In-Memory Device Gate Ready")
	slog.Info("Base URL: " + baseURL)
	slog.Info("")
	slog.Info("Test credentials:")
	slog.Info("  Email: admin@example.com")
	slog.Info("  Password: password123")
	slog.Info("")
	slog.Info("API Endpoints:")
	slog.Info("  POST /api/device/register           - Register a device")
	slog.Info("  POST /api/device/verify             - Verify a registration token")
	slog.Info("  POST /api/approval/request          - Request device approval")
	slog.Info("  POST /api/approval/check_status     - Check device status")
	slog.Info("  POST /api/auth/login                - Login through the gate")
	slog.Info("  GET  /api/admin/approval/requests   - List requests (auth required)")
	slog.Info(strings.Repeat("=", 60))

	server.Run()
}
