package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Strava    StravaConfig    `yaml:"strava"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	// Pool tuning; zero keeps the driver default.
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

type AuthConfig struct {
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

type StravaConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	BaseURL      string `yaml:"base_url"`
}

// AnalyticsConfig controls calendar bucketing. Timezone is an IANA name used
// for month/week boundaries; WeeklyWindow is the default number of weeks.
type AnalyticsConfig struct {
	Timezone     string `yaml:"timezone"`
	WeeklyWindow int    `yaml:"weekly_window"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A .env file in the working directory, if present, is loaded first; it never
// replaces variables already set in the process environment.
// Env vars use the prefix DOUBLEDASH_ and underscore-separated paths:
//
//	DOUBLEDASH_SERVER_HOST, DOUBLEDASH_SERVER_PORT,
//	DOUBLEDASH_DB_HOST, DOUBLEDASH_DB_PORT, DOUBLEDASH_DB_NAME,
//	DOUBLEDASH_DB_USER, DOUBLEDASH_DB_PASSWORD, DOUBLEDASH_DB_SSLMODE,
//	DOUBLEDASH_DB_MAX_CONNS,
//	DOUBLEDASH_AUTH_API_KEY, DOUBLEDASH_AUTH_JWT_SECRET,
//	DOUBLEDASH_STRAVA_CLIENT_ID, DOUBLEDASH_STRAVA_CLIENT_SECRET,
//	DOUBLEDASH_ANALYTICS_TIMEZONE
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOUBLEDASH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DOUBLEDASH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOUBLEDASH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DOUBLEDASH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DOUBLEDASH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DOUBLEDASH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DOUBLEDASH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DOUBLEDASH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("DOUBLEDASH_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxConns = n
		}
	}
	if v := os.Getenv("DOUBLEDASH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("DOUBLEDASH_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("DOUBLEDASH_STRAVA_CLIENT_ID"); v != "" {
		cfg.Strava.ClientID = v
	}
	if v := os.Getenv("DOUBLEDASH_STRAVA_CLIENT_SECRET"); v != "" {
		cfg.Strava.ClientSecret = v
	}
	if v := os.Getenv("DOUBLEDASH_ANALYTICS_TIMEZONE"); v != "" {
		cfg.Analytics.Timezone = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.JWTIssuer == "" {
		cfg.Auth.JWTIssuer = "doubledash"
	}
	if cfg.Analytics.Timezone == "" {
		cfg.Analytics.Timezone = "UTC"
	}
	if cfg.Analytics.WeeklyWindow <= 0 {
		cfg.Analytics.WeeklyWindow = 12
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "doubledash"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if (c.Strava.ClientID == "") != (c.Strava.ClientSecret == "") {
		return fmt.Errorf("strava.client_id and strava.client_secret must be set together")
	}
	return nil
}
