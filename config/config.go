package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Database   DatabaseConfig   `json:"database"`
	RabbitMQ   RabbitMQConfig   `json:"rabbitmq"`
	JWT        JWTConfig        `json:"jwt"`
	Auth       AuthConfig       `json:"auth"`
	AI         AIConfig         `json:"ai"`
	Enrichment EnrichmentConfig `json:"enrichment"`
	Log        LogConfig        `json:"log"`
}

type ServerConfig struct {
	Port           string   `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type StorageConfig struct {
	Driver string `json:"driver"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RabbitMQConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Enabled reports whether a broker is configured. Without one, events are
// dispatched in-process.
func (r RabbitMQConfig) Enabled() bool {
	return r.Host != ""
}

type JWTConfig struct {
	Secret          string `json:"secret"`
	ExpirationHours int    `json:"expiration_hours"`
}

type AuthConfig struct {
	AllowPrivilegedSignup bool `json:"allow_privileged_signup"`
}

type AIConfig struct {
	GeminiAPIKey      string  `json:"gemini_api_key"`
	GeminiModel       string  `json:"gemini_model"`
	VisionAPIKey      string  `json:"vision_api_key"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
}

type EnrichmentConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
	Attempts  int `json:"attempts"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; only real environment variables matter in production
	if err := godotenv.Load(); err != nil {
		log.Debugf("config: no .env file loaded: %v", err)
	}

	config := Default()

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Warnf("config: %s not found, using defaults and environment", path)
	} else {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, err
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{Driver: StorageMemory},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		JWT: JWTConfig{ExpirationHours: 24},
		AI: AIConfig{
			GeminiModel:       "gemini-1.5-flash",
			RequestsPerSecond: 2,
			TimeoutSeconds:    30,
		},
		Enrichment: EnrichmentConfig{
			Workers:   2,
			QueueSize: 100,
			Attempts:  1,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func (c *Config) applyEnv() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setString(&c.RabbitMQ.Port, "RABBITMQ_PORT")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	setString(&c.JWT.Secret, "JWT_SECRET")
	setString(&c.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.AI.GeminiModel, "GEMINI_MODEL")
	setString(&c.AI.VisionAPIKey, "VISION_API_KEY")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("ALLOW_PRIVILEGED_SIGNUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.AllowPrivilegedSignup = b
		}
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return errors.New("storage driver must be memory or postgres")
	}
	if c.Enrichment.Workers <= 0 {
		c.Enrichment.Workers = 1
	}
	if c.Enrichment.Attempts <= 0 {
		c.Enrichment.Attempts = 1
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
