package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTIssuer          string        `mapstructure:"JWT_ISSUER"`
	JWTAudience        string        `mapstructure:"JWT_AUDIENCE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	UploadDir          string        `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes     int64         `mapstructure:"UPLOAD_MAX_BYTES"`
	ICD11ClientID      string        `mapstructure:"ICD11_CLIENT_ID"`
	ICD11ClientSecret  string        `mapstructure:"ICD11_CLIENT_SECRET"`
	ICD11TokenURL      string        `mapstructure:"ICD11_TOKEN_URL"`
	ICD11SearchURL     string        `mapstructure:"ICD11_SEARCH_URL"`
	ICD11Timeout       time.Duration `mapstructure:"ICD11_TIMEOUT"`
	AuthPasswordBypass bool          `mapstructure:"AUTH_PASSWORD_BYPASS"`
	LogFormat          string        `mapstructure:"LOG_FORMAT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	TLSEnabled         bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string        `mapstructure:"TLS_KEY_FILE"`
}

// keys lists every variable bound from the environment.
var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"JWT_SECRET", "JWT_ISSUER", "JWT_AUDIENCE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"UPLOAD_DIR", "UPLOAD_MAX_BYTES",
	"ICD11_CLIENT_ID", "ICD11_CLIENT_SECRET", "ICD11_TOKEN_URL", "ICD11_SEARCH_URL", "ICD11_TIMEOUT",
	"AUTH_PASSWORD_BYPASS", "LOG_FORMAT", "LOG_LEVEL",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "careconnect")
	v.SetDefault("JWT_AUDIENCE", "careconnect-web")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 5<<20)
	v.SetDefault("ICD11_TOKEN_URL", "https://icdaccessmanagement.who.int/connect/token")
	v.SetDefault("ICD11_SEARCH_URL", "https://id.who.int/icd/release/11/2024-01/mms/search")
	v.SetDefault("ICD11_TIMEOUT", "10s")
	v.SetDefault("AUTH_PASSWORD_BYPASS", false)
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedLogFormat returns LOG_FORMAT when set, otherwise "console" in
// development and "json" everywhere else.
func (c *Config) ResolvedLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.IsDev() {
		return "console"
	}
	return "json"
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SECRET must be at least 32 bytes, and the password bypass may never be
// enabled in production.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes outside development, got %d", len(c.JWTSecret))
	}
	if c.IsProduction() && c.AuthPasswordBypass {
		return fmt.Errorf("AUTH_PASSWORD_BYPASS must not be enabled in production")
	}

	switch c.ResolvedLogFormat() {
	case "json", "console", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\", \"console\", or \"ecs\", got %q", c.LogFormat)
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
