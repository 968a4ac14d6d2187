package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Redis      RedisConfig      `json:"redis"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Onboarding OnboardingConfig `json:"onboarding"`
	Readiness  ReadinessConfig  `json:"readiness"`
	Storage    StorageConfig    `json:"storage"`
	Events     EventsConfig     `json:"events"`
}

// Duration accepts "800ms", "15s" or a number of nanoseconds in JSON
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return errors.New("invalid duration")
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ReadTimeout    Duration `json:"read_timeout"`
	WriteTimeout   Duration `json:"write_timeout"`
	IdleTimeout    Duration `json:"idle_timeout"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	User           string   `json:"user"`
	Password       string   `json:"password"`
	DBName         string   `json:"db_name"`
	SSLMode        string   `json:"ssl_mode"`
	MaxConnections int      `json:"max_connections"`
	MaxIdleConns   int      `json:"max_idle_conns"`
	MaxLifetime    Duration `json:"max_lifetime"`
}

// RedisConfig
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string   `json:"jwt_secret"`
	TokenTTL  Duration `json:"token_ttl"`
	DevTokens bool     `json:"dev_tokens"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// Draft store kinds
const (
	DraftStoreMemory = "memory"
	DraftStoreSQL    = "sql"
	DraftStoreRedis  = "redis"
)

// OnboardingConfig configures the onboarding wizard engine
type OnboardingConfig struct {
	BackendURL       string   `json:"backend_url"`
	SubmitTimeout    Duration `json:"submit_timeout"`
	DraftDebounce    Duration `json:"draft_debounce"`
	DraftStore       string   `json:"draft_store"`
	DraftRetention   Duration `json:"draft_retention"`
	SessionTTL       Duration `json:"session_ttl"`
	SubmitRatePerMin int      `json:"submit_rate_per_min"`
	SubmitBurst      int      `json:"submit_burst"`
	JanitorSchedule  string   `json:"janitor_schedule"`
}

// ReadinessConfig
type ReadinessConfig struct {
	CacheTTL Duration `json:"cache_ttl"`
}

// StorageConfig holds the document bucket settings
type StorageConfig struct {
	Bucket          string   `json:"bucket"`
	Region          string   `json:"region"`
	Endpoint        string   `json:"endpoint"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	LinkTTL         Duration `json:"link_ttl"`
}

// EventsConfig
type EventsConfig struct {
	SNSTopicARN string `json:"sns_topic_arn"`
}

// LoadConfig loads configuration from file and environment variables. A .env
// file in the working directory, if present, is loaded into the environment
// first.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{60 * time.Second},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "bidready_portal",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Security: SecurityConfig{
			TokenTTL: Duration{time.Hour},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Onboarding: OnboardingConfig{
			BackendURL:       "http://localhost:9090/api",
			SubmitTimeout:    Duration{15 * time.Second},
			DraftDebounce:    Duration{800 * time.Millisecond},
			DraftStore:       DraftStoreSQL,
			DraftRetention:   Duration{30 * 24 * time.Hour},
			SessionTTL:       Duration{30 * time.Minute},
			SubmitRatePerMin: 30,
			SubmitBurst:      5,
			JanitorSchedule:  "0 3 * * *",
		},
		Readiness: ReadinessConfig{
			CacheTTL: Duration{2 * time.Minute},
		},
		Storage: StorageConfig{
			Region:  "us-east-1",
			LinkTTL: Duration{15 * time.Minute},
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if url := os.Getenv("ONBOARDING_BACKEND_URL"); url != "" {
		config.Onboarding.BackendURL = url
	}
	if kind := os.Getenv("ONBOARDING_DRAFT_STORE"); kind != "" {
		config.Onboarding.DraftStore = kind
	}
	if d := os.Getenv("ONBOARDING_DRAFT_DEBOUNCE"); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return fmt.Errorf("invalid ONBOARDING_DRAFT_DEBOUNCE: %w", err)
		}
		config.Onboarding.DraftDebounce = Duration{parsed}
	}
	if bucket := os.Getenv("DOCUMENTS_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if endpoint := os.Getenv("DOCUMENTS_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Storage.Region = region
	}
	if topic := os.Getenv("ONBOARDING_SNS_TOPIC_ARN"); topic != "" {
		config.Events.SNSTopicARN = topic
	}
	return nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret (JWT_SECRET) is required")
	}
	switch c.Onboarding.DraftStore {
	case DraftStoreMemory, DraftStoreSQL, DraftStoreRedis:
	default:
		return fmt.Errorf("unknown onboarding.draft_store %q", c.Onboarding.DraftStore)
	}
	if c.Onboarding.BackendURL == "" {
		return errors.New("onboarding.backend_url is required")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
