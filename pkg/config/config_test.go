package config

import (
	"testing"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateConfig_ReadEnv(t *testing.T) {
	t.Setenv("DEVICE_GATE_PERSISTENCE", "inmem")
	t.Setenv("DEVICE_GATE_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("DEVICE_GATE_NOTIFICATIONS_ENABLED", "true")

	var cfg GateConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))

	assert.Equal(t, "inmem", cfg.PersistenceType)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
	assert.True(t, cfg.NotificationsEnabled)
	// Untouched fields fall back to their defaults
	assert.Equal(t, "*/10 * * * *", cfg.SweepSchedule)
}

func TestDatabaseConfig_Defaults(t *testing.T) {
	var cfg DatabaseConfig
	require.NoError(t, cleanenv.ReadEnv(&cfg))

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, uint16(5432), cfg.Port)
	assert.Equal(t, "gate_db", cfg.Database)
}

func TestDatabaseConfig_ToDbConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "gate_db",
		User:     "gate",
		Password: "pwd",
	}

	dbConfig := cfg.ToDbConfig()
	assert.Equal(t, "db.internal", dbConfig.Host)
	assert.Equal(t, uint16(5433), dbConfig.Port)
	assert.Equal(t, "gate_db", dbConfig.Database)
	assert.Equal(t, "gate", dbConfig.User)
	assert.Equal(t, "pwd", dbConfig.Password)
}
