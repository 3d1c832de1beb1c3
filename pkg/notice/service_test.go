package notice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/device-gate/pkg/notification"
)

func TestNewNotificationManager(t *testing.T) {
	nm, err := NewNotificationManager(notification.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "gate@example.com",
		Password: "password",
		From:     "gate@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, nm)
}

func TestLoadTemplate(t *testing.T) {
	for _, name := range []string{
		"templates/email/device_request_created.html",
		"templates/email/device_approved.html",
		"templates/email/device_blocked.html",
		"templates/email/registration_token.html",
	} {
		content := loadTemplate(name)
		assert.NotEmpty(t, content, name)
	}
}
