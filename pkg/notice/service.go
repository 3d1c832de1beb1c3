package notice

import (
	"embed"
	"log/slog"

	"github.com/tendant/device-gate/pkg/notification"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NewNotificationManager creates a notification manager with the device gate
// notices registered for email delivery.
func NewNotificationManager(smtpConfig notification.SMTPConfig) (*notification.NotificationManager, error) {
	notificationManager := notification.NewNotificationManager()

	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		return nil, err
	}

	notificationManager.RegisterNotifier(notification.EmailSystem, emailNotifier)

	err = notificationManager.RegisterNotification(notification.DeviceRequestCreatedNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Device Approval Requested",
		Html:    loadTemplate("templates/email/device_request_created.html"),
	})
	if err != nil {
		return nil, err
	}

	err = notificationManager.RegisterNotification(notification.DeviceApprovedNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Device Approved",
		Html:    loadTemplate("templates/email/device_approved.html"),
	})
	if err != nil {
		return nil, err
	}

	err = notificationManager.RegisterNotification(notification.DeviceBlockedNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Device Blocked",
		Html:    loadTemplate("templates/email/device_blocked.html"),
	})
	if err != nil {
		return nil, err
	}

	err = notificationManager.RegisterNotification(notification.RegistrationTokenNotice, notification.EmailSystem, notification.NoticeTemplate{
		Subject: "Your Device Registration Token",
		Html:    loadTemplate("templates/email/registration_token.html"),
	})
	if err != nil {
		return nil, err
	}

	return notificationManager, nil
}
