package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL settings for the account store.
type DatabaseConfig struct {
	Host     string `env:"SSO_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"SSO_PG_PORT" env-default:"5432"`
	Database string `env:"SSO_PG_DATABASE" env-default:"sso_db"`
	User     string `env:"SSO_PG_USER" env-default:"sso"`
	Password string `env:"SSO_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to the db-utils pool settings.
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}
