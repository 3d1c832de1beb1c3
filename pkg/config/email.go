package config

// EmailConfig holds SMTP configuration for outbound notices
type EmailConfig struct {
	Host     string `env:"DEVICE_GATE_EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"DEVICE_GATE_EMAIL_PORT" env-default:"1025"`
	TLS      bool   `env:"DEVICE_GATE_EMAIL_TLS" env-default:"false"`
	Username string `env:"DEVICE_GATE_EMAIL_USERNAME" env-default:""`
	Password string `env:"DEVICE_GATE_EMAIL_PASSWORD" env-default:""`
	From     string `env:"DEVICE_GATE_EMAIL_FROM" env-default:"noreply@example.com"`
}

