// Package config loads the runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Mail     MailConfig
	CORS     CORSConfig
	Log      LogConfig
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	JWTSecret    string
	AccessExpiry time.Duration
	RefreshTTL   time.Duration
}

// RedisConfig holds the refresh-token store settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailConfig holds the mail-provider API settings.
type MailConfig struct {
	Endpoint string
	APIKey   string
	From     string
	BaseURL  string // public base URL used in verification links
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. Database
// credentials and the JWT secret are required; everything else has
// development defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			SSLMode: getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			AccessExpiry: time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_HOURS", 24)) * time.Hour,
			RefreshTTL:   time.Duration(getEnvInt("REFRESH_TTL_HOURS", 168)) * time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Mail: MailConfig{
			Endpoint: os.Getenv("MAIL_API_URL"),
			APIKey:   os.Getenv("MAIL_API_KEY"),
			From:     getEnv("MAIL_FROM", "noreply@healthlog.local"),
			BaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Port, err = requireEnv("DB_PORT"); err != nil {
		return nil, err
	}
	if cfg.Database.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", key)
	}
	return value, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
