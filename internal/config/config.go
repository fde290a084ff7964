package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config carries the credential, store connection parameters and ingest
// tuning. Values come from config.yml when present; environment
// variables override the file.
type Config struct {
	APIKey string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	Port string

	PageSize   int
	Workers    int
	MaxRetries int
	ReportPath string // optional xlsx run-report destination
}

// fileConfig mirrors the config.yml layout.
type fileConfig struct {
	API struct {
		APIKey string `yaml:"apikey"`
	} `yaml:"api-config"`
	SQL struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       string `yaml:"db"`
	} `yaml:"sql-config"`
}

// Load reads config.yml (if the file exists) and applies environment
// overrides.
func Load() (*Config, error) {
	return LoadFile("config.yml")
}

func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		DBHost:     "localhost",
		DBPort:     3306,
		DBName:     "gw2tp",
		Port:       "8080",
		PageSize:   200,
		Workers:    4,
		MaxRetries: 10,
	}

	if data, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if fc.API.APIKey != "" {
			cfg.APIKey = fc.API.APIKey
		}
		if fc.SQL.Host != "" {
			cfg.DBHost = fc.SQL.Host
		}
		if fc.SQL.Port != 0 {
			cfg.DBPort = fc.SQL.Port
		}
		cfg.DBUser = fc.SQL.Username
		cfg.DBPassword = fc.SQL.Password
		if fc.SQL.DB != "" {
			cfg.DBName = fc.SQL.DB
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.APIKey = getEnv("GW2_API_KEY", cfg.APIKey)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnvInt("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.PageSize = getEnvInt("PAGE_SIZE", cfg.PageSize)
	cfg.Workers = getEnvInt("FETCH_WORKERS", cfg.Workers)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)
	cfg.ReportPath = getEnv("REPORT_XLSX", cfg.ReportPath)

	return cfg, nil
}

// DSN builds the MySQL connection string. DATABASE_URL, when set, wins
// over the discrete host/port/user parameters.
func (c *Config) DSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
