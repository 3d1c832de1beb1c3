package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"DEVICE_GATE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"DEVICE_GATE_PG_PORT" env-default:"5432"`
	Database string `env:"DEVICE_GATE_PG_DATABASE" env-default:"gate_db"`
	User     string `env:"DEVICE_GATE_PG_USER" env-default:"gate"`
	Password string `env:"DEVICE_GATE_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"DEVICE_GATE_PG_SCHEMA" env-default:"public"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

