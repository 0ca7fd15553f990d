package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scraper  ScraperConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ScraperConfig struct {
	Headless         bool
	TimeoutSeconds   int
	Pages            int
	ItemSleepMinSec  float64
	ItemSleepMaxSec  float64
	PageSleepMinSec  float64
	PageSleepMaxSec  float64
	MaxReviewRounds  int
	KeywordTablePath string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8090),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "moviedeck"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("REDIS_MOVIE_STREAM", "stream:movie_catalog"),
		},
		Scraper: ScraperConfig{
			Headless:         getEnvBool("SCRAPER_HEADLESS", true),
			TimeoutSeconds:   getEnvInt("SCRAPER_TIMEOUT", 20),
			Pages:            getEnvInt("SCRAPER_PAGES", 1),
			ItemSleepMinSec:  getEnvFloat("SCRAPER_SLEEP_MIN", 1.0),
			ItemSleepMaxSec:  getEnvFloat("SCRAPER_SLEEP_MAX", 2.5),
			PageSleepMinSec:  getEnvFloat("SCRAPER_PAGE_SLEEP_MIN", 2.0),
			PageSleepMaxSec:  getEnvFloat("SCRAPER_PAGE_SLEEP_MAX", 4.0),
			MaxReviewRounds:  getEnvInt("SCRAPER_MAX_REVIEW_ROUNDS", 20),
			KeywordTablePath: getEnv("SCRAPER_KEYWORD_TABLE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Scraper.Pages < 1 {
		return fmt.Errorf("at least 1 list page is required")
	}

	if c.Scraper.ItemSleepMinSec > c.Scraper.ItemSleepMaxSec {
		return fmt.Errorf("item sleep min %.1f exceeds max %.1f",
			c.Scraper.ItemSleepMinSec, c.Scraper.ItemSleepMaxSec)
	}

	if c.Scraper.PageSleepMinSec > c.Scraper.PageSleepMaxSec {
		return fmt.Errorf("page sleep min %.1f exceeds max %.1f",
			c.Scraper.PageSleepMinSec, c.Scraper.PageSleepMaxSec)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
