package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable, e.g. CREDIT_INPUT_PATH.
const envPrefix = "CREDIT"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Mode      string `envconfig:"MODE" default:"report"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// Report mode
	Source     string `envconfig:"SOURCE" default:"file"`
	InputPath  string `envconfig:"INPUT_PATH"`
	InputShape string `envconfig:"INPUT_SHAPE"`
	Query      string `envconfig:"QUERY"`
	CompareKey string `envconfig:"COMPARE_KEY" default:"country"`
	CompareA   string `envconfig:"COMPARE_A"`
	CompareB   string `envconfig:"COMPARE_B"`
	ExportPath string `envconfig:"EXPORT_PATH"`

	SnapshotDir    string `envconfig:"SNAPSHOT_DIR"`
	SnapshotEngine string `envconfig:"SNAPSHOT_ENGINE" default:"native"`
	ChromeBin      string `envconfig:"CHROME_BIN"`

	// Serve mode
	HTTPAddr       string  `envconfig:"HTTP_ADDR" default:":8080"`
	MaxUploadBytes int64   `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// PostgreSQL source
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"analyst"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"credit_db"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	PostgresTable    string `envconfig:"POSTGRES_TABLE" default:"credit_records"`
	MaxRetries       int    `envconfig:"MAX_RETRIES" default:"3"`
}

// Load reads the .env file, if any, and returns a populated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv populates a Config from the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Mode {
	case "report", "serve":
	default:
		return fmt.Errorf("config: unknown mode %q (want report or serve)", c.Mode)
	}
	switch c.Source {
	case "file", "postgres":
	default:
		return fmt.Errorf("config: unknown source %q (want file or postgres)", c.Source)
	}
	switch c.SnapshotEngine {
	case "", "native", "chrome":
	default:
		return fmt.Errorf("config: unknown snapshot engine %q (want native or chrome)", c.SnapshotEngine)
	}
	if c.Mode == "report" && c.Source == "file" && c.InputPath == "" {
		return fmt.Errorf("config: %s_INPUT_PATH is required in report mode", envPrefix)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: %s_MAX_UPLOAD_BYTES must be positive", envPrefix)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
