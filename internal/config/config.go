package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Redis    RedisConfig    `json:"redis"`
	Alerting AlertingConfig `json:"alerting"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
	// APIToken protects the HTTP API when set; empty means open access.
	APIToken string `json:"apiToken"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type LoggingConfig struct {
	Level string `json:"level"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AlertingConfig struct {
	Engine     EngineConfig     `json:"engine"`
	Prometheus PrometheusConfig `json:"prometheus"`
	Notifier   NotifierConfig   `json:"notifier"`
}

type EngineConfig struct {
	RulesFile  string `json:"rulesFile"`
	Workers    int    `json:"workers"`
	Resolution string `json:"resolution"` // e.g. "1s"
}

type PrometheusConfig struct {
	URL          string `json:"url"`
	QueryTimeout string `json:"queryTimeout"` // e.g. "30s"
}

type NotifierConfig struct {
	WebhookURL string `json:"webhookURL"`
	Timeout    string `json:"timeout"` // e.g. "5s"
	BasicUser  string `json:"basicUser"`
	BasicPass  string `json:"basicPass"`
	Bearer     string `json:"bearer"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
			APIToken: getEnv("SERVER_API_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "queuewatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "debug"),
		},
		Redis: RedisConfig{
			// empty by default: the alert cache mirror is opt-in
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Alerting: AlertingConfig{
			Engine: EngineConfig{
				RulesFile:  getEnv("ALERT_RULES_FILE", "configs/taskiq-alerts.yml"),
				Workers:    getEnvInt("ALERT_ENGINE_WORKERS", 4),
				Resolution: getEnv("ALERT_ENGINE_RESOLUTION", "1s"),
			},
			Prometheus: PrometheusConfig{
				URL:          getEnv("PROMETHEUS_URL", "http://localhost:9090"),
				QueryTimeout: getEnv("PROMETHEUS_QUERY_TIMEOUT", "30s"),
			},
			Notifier: NotifierConfig{
				WebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),
				Timeout:    getEnv("ALERT_WEBHOOK_TIMEOUT", "5s"),
				BasicUser:  getEnv("ALERT_WEBHOOK_BASIC_USER", ""),
				BasicPass:  getEnv("ALERT_WEBHOOK_BASIC_PASS", ""),
				Bearer:     getEnv("ALERT_WEBHOOK_BEARER", ""),
			},
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills reasonable defaults for fields omitted in the file.
// Redis stays empty on purpose: an address enables the alert cache mirror.
func applyDefaults(cfg *Config) {
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}
	if cfg.Alerting.Engine.Workers <= 0 {
		cfg.Alerting.Engine.Workers = 4
	}
	if cfg.Alerting.Engine.Resolution == "" {
		cfg.Alerting.Engine.Resolution = "1s"
	}
	if cfg.Alerting.Prometheus.URL == "" {
		cfg.Alerting.Prometheus.URL = "http://localhost:9090"
	}
	if cfg.Alerting.Prometheus.QueryTimeout == "" {
		cfg.Alerting.Prometheus.QueryTimeout = "30s"
	}
	if cfg.Alerting.Notifier.Timeout == "" {
		cfg.Alerting.Notifier.Timeout = "5s"
	}
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
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
