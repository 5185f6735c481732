// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"ledgerflow/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort   string
	DefaultScale int32 // decimal places assigned to wallets created without one
	DB           db.Config
}

// LoadConfig loads configuration from environment variables, with defaults
// suitable for local development.
func LoadConfig() (*AppConfig, error) {
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	defaultScale := int32(2)
	if v := os.Getenv("LEDGER_DEFAULT_SCALE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 18 {
			return nil, fmt.Errorf("invalid LEDGER_DEFAULT_SCALE: %q", v)
		}
		defaultScale = int32(n)
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		dbPortStr = "5432"
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		dbPassword = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "ledgerdb"
	}
	dbSSLMode := os.Getenv("DB_SSLMODE")
	if dbSSLMode == "" {
		dbSSLMode = "disable"
	}

	return &AppConfig{
		ServerPort:   serverPort,
		DefaultScale: defaultScale,
		DB: db.Config{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPassword,
			DBName:   dbName,
			SSLMode:  dbSSLMode,
		},
	}, nil
}
