package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Komga     KomgaConfig
	Navidrome *NavidromeConfig
}

// AppConfig holds the web server configuration
type AppConfig struct {
	Host string
	Port int
	Env  string
	// Token is the shared secret guarding the admin endpoints
	Token string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KomgaConfig holds the Komga instance configuration (required)
type KomgaConfig struct {
	Host     string
	Username string
	Password string
	// Hostname is the externally reachable name when running behind a
	// reverse proxy; falls back to Host when empty
	Hostname string
}

// NavidromeConfig holds the Navidrome instance configuration (optional)
type NavidromeConfig struct {
	Host     string
	Username string
	Password string
	Hostname string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "5148"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Host:  getEnv("APP_HOST", "127.0.0.1"),
		Port:  appPort,
		Env:   getEnv("APP_ENV", "development"),
		Token: getEnv("AUTH_TOKEN", ""),
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "klibrarian"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	config.Komga = KomgaConfig{
		Host:     getEnv("KOMGA_HOST", ""),
		Username: getEnv("KOMGA_USERNAME", ""),
		Password: getEnv("KOMGA_PASSWORD", ""),
		Hostname: getEnv("KOMGA_HOSTNAME", ""),
	}

	// Navidrome is wired only when a host is provided
	if navidromeHost := getEnv("NAVIDROME_HOST", ""); navidromeHost != "" {
		config.Navidrome = &NavidromeConfig{
			Host:     navidromeHost,
			Username: getEnv("NAVIDROME_USERNAME", ""),
			Password: getEnv("NAVIDROME_PASSWORD", ""),
			Hostname: getEnv("NAVIDROME_HOSTNAME", ""),
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Token == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Komga.Host == "" {
		return fmt.Errorf("KOMGA_HOST is required")
	}
	if c.Komga.Username == "" {
		return fmt.Errorf("KOMGA_USERNAME is required")
	}
	if c.Komga.Password == "" {
		return fmt.Errorf("KOMGA_PASSWORD is required")
	}
	if c.Navidrome != nil {
		if c.Navidrome.Username == "" {
			return fmt.Errorf("NAVIDROME_USERNAME is required when NAVIDROME_HOST is set")
		}
		if c.Navidrome.Password == "" {
			return fmt.Errorf("NAVIDROME_PASSWORD is required when NAVIDROME_HOST is set")
		}
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// KomgaHostname returns the externally reachable Komga host, preferring the
// explicit override over the raw configured host.
func (c *Config) KomgaHostname() string {
	if c.Komga.Hostname != "" {
		return c.Komga.Hostname
	}
	return c.Komga.Host
}

// NavidromeHostname returns the externally reachable Navidrome host, or ""
// when Navidrome is not configured.
func (c *Config) NavidromeHostname() string {
	if c.Navidrome == nil {
		return ""
	}
	if c.Navidrome.Hostname != "" {
		return c.Navidrome.Hostname
	}
	return c.Navidrome.Host
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
