package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"daemonpanel/internal/registry"
)

// Config holds all configuration for the panel. Process settings come from
// the environment; the service list comes from a YAML file and is validated
// here, before anything starts serving traffic.
type Config struct {
	// Server settings
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Authentication. An empty APIKey leaves the panel open; bind to
	// loopback in that case.
	APIKey    string
	JWTSecret string

	// Security
	AllowedOrigins []string
	RateLimitRPS   int

	// Bounds on systemd interactions
	ProbeTimeout  time.Duration
	ActionTimeout time.Duration
	LogTimeout    time.Duration
	LogMaxLines   int

	// Logging
	LogLevel string

	// Services
	ServicesFile string
	Services     []registry.Entry
}

// Load reads configuration from environment variables and the services
// file. Any validation failure here is fatal to startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:           getEnv("DAEMON_PANEL_ADDR", "127.0.0.1:3000"),
		ReadTimeout:    time.Duration(getEnvInt("READ_TIMEOUT_SECONDS", 30)) * time.Second,
		WriteTimeout:   time.Duration(getEnvInt("WRITE_TIMEOUT_SECONDS", 60)) * time.Second,
		APIKey:         getEnv("API_KEY", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 50),
		ProbeTimeout:   time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 5)) * time.Second,
		ActionTimeout:  time.Duration(getEnvInt("ACTION_TIMEOUT_SECONDS", 30)) * time.Second,
		LogTimeout:     time.Duration(getEnvInt("LOG_TIMEOUT_SECONDS", 10)) * time.Second,
		LogMaxLines:    getEnvInt("LOG_MAX_LINES", 100),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServicesFile:   getEnv("DAEMON_PANEL_CONFIG", "services.yaml"),
	}

	if cfg.JWTSecret == "" {
		// Use API key as fallback for JWT secret
		cfg.JWTSecret = cfg.APIKey
	}

	services, err := LoadServices(cfg.ServicesFile)
	if err != nil {
		return nil, err
	}
	cfg.Services = services

	return cfg, nil
}

// servicesFile is the on-disk shape of the service list.
type servicesFile struct {
	Services []registry.Entry `yaml:"services"`
}

// LoadServices reads and validates the YAML service list. Malformed entries
// are rejected here, not surfaced later as probe errors.
func LoadServices(path string) ([]registry.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read services file %q: %w", path, err)
	}

	var f servicesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse services file %q: %w", path, err)
	}
	if len(f.Services) == 0 {
		return nil, fmt.Errorf("services file %q configures no services", path)
	}

	seen := make(map[string]bool, len(f.Services))
	for i := range f.Services {
		e := &f.Services[i]
		if e.ID == "" {
			return nil, fmt.Errorf("service #%d: missing id", i+1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("service %q: duplicate id", e.ID)
		}
		seen[e.ID] = true

		if e.Unit == "" {
			return nil, fmt.Errorf("service %q: missing unit name", e.ID)
		}
		// Unit names carry a type suffix ("nginx.service", "tmp.mount").
		if !strings.Contains(e.Unit, ".") {
			return nil, fmt.Errorf("service %q: unit name %q has no type suffix", e.ID, e.Unit)
		}
		if e.Name == "" {
			e.Name = e.ID
		}
	}

	return f.Services, nil
}

// LoadWithDefaults returns a config with test-friendly defaults.
func LoadWithDefaults() *Config {
	return &Config{
		Addr:           "127.0.0.1:3000",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		APIKey:         "test-api-key",
		JWTSecret:      "test-jwt-secret",
		AllowedOrigins: []string{"*"},
		RateLimitRPS:   50,
		ProbeTimeout:   5 * time.Second,
		ActionTimeout:  30 * time.Second,
		LogTimeout:     10 * time.Second,
		LogMaxLines:    100,
		LogLevel:       "info",
		Services: []registry.Entry{
			{ID: "nm", Unit: "NetworkManager.service", Name: "Network manager"},
		},
	}
}

// AuthEnabled reports whether the API requires a key.
func (c *Config) AuthEnabled() bool {
	return c.APIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
