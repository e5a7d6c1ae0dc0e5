// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Site     SiteConfig
	SMTP     SMTPConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     int // seconds
	WriteTimeout    int // seconds
	IdleTimeout     int // seconds
	ShutdownTimeout int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string

	// RawDSN, when set, overrides the discrete PostgreSQL fields.
	RawDSN string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool

	// BaseURL prefixes the links sent to customers.
	BaseURL   string
	LogLevel  string
	LogPretty bool

	// ProfileCacheTTL is how long resolved permissions are cached, in seconds.
	ProfileCacheTTL int
}

// SiteConfig is the shop identity shown in customer emails.
type SiteConfig struct {
	Name         string
	ContactEmail string
	Lang         string
}

// SMTPConfig holds outgoing mail settings. An empty Host disables SMTP and
// emails are written to the log instead.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  int // seconds
}

// SessionConfig holds the back-office session cookie settings.
type SessionConfig struct {
	Secret       string
	TTLHours     int
	SecureCookie bool
}

// Enabled reports whether emails go out over SMTP.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:     getEnvInt("SERVER_IDLE_TIMEOUT", 60),
			ShutdownTimeout: getEnvInt("SERVER_SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "quotes"),
			Password:   getEnv("DB_PASSWORD", "quotes123"),
			DBName:     getEnv("DB_NAME", "quotes"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "quotes.db"),
			RawDSN:     getEnv("DATABASE_DSN", ""),
		},
		App: AppConfig{
			Dev:             getEnvBool("DEV", true),
			Migrations:      getEnvBool("MIGRATIONS", false),
			BaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			LogPretty:       getEnvBool("LOG_PRETTY", false),
			ProfileCacheTTL: getEnvInt("PROFILE_CACHE_TTL", 300),
		},
		Site: SiteConfig{
			Name:         getEnv("SITE_NAME", "PrintCo"),
			ContactEmail: getEnv("SITE_CONTACT_EMAIL", ""),
			Lang:         getEnv("SITE_LANG", "fr"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "quotes@localhost"),
			Timeout:  getEnvInt("SMTP_TIMEOUT", 10),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", ""),
			TTLHours:     getEnvInt("SESSION_TTL_HOURS", 336),
			SecureCookie: getEnvBool("SESSION_SECURE_COOKIE", false),
		},
	}
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q (want postgres or sqlite)", c.Database.Driver)
	}
	if c.App.BaseURL == "" {
		return fmt.Errorf("config: PUBLIC_BASE_URL is required")
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		return fmt.Errorf("config: SMTP_FROM is required when SMTP_HOST is set")
	}
	if !c.App.Dev && c.Session.Secret == "" {
		return fmt.Errorf("config: SESSION_SECRET is required outside dev mode")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
