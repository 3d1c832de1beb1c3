package config

// GateConfig holds device gate behavior configuration
type GateConfig struct {
	// PersistenceType selects the storage backend: postgres or inmem
	PersistenceType string `env:"DEVICE_GATE_PERSISTENCE" env-default:"postgres"`
	// AdminEmail receives new-request notices; empty disables them
	AdminEmail string `env:"DEVICE_GATE_ADMIN_EMAIL" env-default:""`
	// JwtSecret signs access tokens and verifies admin tokens
	JwtSecret string `env:"DEVICE_GATE_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	// SweepSchedule is the cron expression for the expiry sweeps
	SweepSchedule string `env:"DEVICE_GATE_SWEEP_SCHEDULE" env-default:"*/10 * * * *"`
	// NotificationsEnabled turns outbound email notices on
	NotificationsEnabled bool `env:"DEVICE_GATE_NOTIFICATIONS_ENABLED" env-default:"false"`
}

