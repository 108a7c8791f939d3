package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	databaseVar  = "DATABASE_URL"
	frontendVar  = "FRONTEND_URL"
	jwtSecretVar = "JWT_SECRET"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Admin Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetDatabaseURL returns the Postgres connection string. Empty means run on
// in-memory storage.
func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseVar, "")
}

// GetFrontendURL is the base URL invite and reset links point at.
func (EnvVars) GetFrontendURL() string {
	return GetEnv(frontendVar, "http://localhost:3000")
}

func (EnvVars) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "")
}

func (EnvVars) GetSmtpPort() string {
	return GetEnv("SMTP_PORT", "465")
}

func (EnvVars) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (EnvVars) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

func (EnvVars) GetSmtpSender() string {
	return GetEnv("SMTP_SENDER", "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
