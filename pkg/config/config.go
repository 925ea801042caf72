// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Database connections, loaded on demand by LoadSnowflake / LoadPostgres
	Snowflake *SnowflakeConfig
	Postgres  *PostgresConfig

	// Cleaning settings
	WorkerPoolSize int     `validate:"gte=0"`
	LowerQuantile  float64 `validate:"gte=0,lte=1"`
	UpperQuantile  float64 `validate:"gte=0,lte=1,gtefield=LowerQuantile"`
	StrictSSN      bool

	// Outputs
	AuditEnabled    bool
	MetricsTextfile string

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

// LoadConfig loads configuration from environment variables. envFile, when
// set, is read first and must exist; otherwise a .env in the working
// directory is read if present. Variables already set in the environment
// take precedence over either file.
func LoadConfig(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		WorkerPoolSize:  getEnvAsInt("WORKER_POOL_SIZE", 0), // 0 means use runtime.NumCPU()
		LowerQuantile:   getEnvAsFloat("OUTLIER_LOWER_QUANTILE", 0.05),
		UpperQuantile:   getEnvAsFloat("OUTLIER_UPPER_QUANTILE", 0.95),
		StrictSSN:       getEnvAsBool("SSN_STRICT", false),
		AuditEnabled:    getEnvAsBool("AUDIT_ENABLED", false),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSnowflake loads and attaches the Snowflake configuration
func (c *Config) LoadSnowflake() (*SnowflakeConfig, error) {
	if c.Snowflake != nil {
		return c.Snowflake, nil
	}
	sf, err := LoadSnowflakeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load Snowflake configuration: %w", err)
	}
	c.Snowflake = sf
	return sf, nil
}

// LoadPostgres loads and attaches the PostgreSQL configuration
func (c *Config) LoadPostgres() (*PostgresConfig, error) {
	if c.Postgres != nil {
		return c.Postgres, nil
	}
	pg, err := LoadPostgresConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load PostgreSQL configuration: %w", err)
	}
	c.Postgres = pg
	return pg, nil
}

var validate = validator.New()

// Validate ensures all configuration is present and valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
