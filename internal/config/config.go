package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	CouchDB    CouchDBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Extraction ExtractionConfig
	Dispatcher DispatcherConfig
	WebSocket  WebSocketConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN returns a lib/pq keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// CouchDBConfig points at the identity store holding user documents.
type CouchDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c CouchDBConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", c.User, c.Password, c.Host, c.Port)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type EncryptionConfig struct {
	Secret string
}

type ExtractionConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type DispatcherConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Enabled           bool
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	refreshExp, err := time.ParseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_TOKEN_EXPIRATION: %w", err)
	}

	extractionTimeout, err := time.ParseDuration(getEnv("EXTRACTION_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_TIMEOUT: %w", err)
	}

	dispatchInterval, err := time.ParseDuration(getEnv("REMINDER_DISPATCH_INTERVAL", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_DISPATCH_INTERVAL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnvAsInt("PG_PORT", 5432),
			User:     getEnv("PG_USER", "postgres"),
			Password: getEnv("PG_PASSWORD", "postgres"),
			Database: getEnv("PG_DATABASE", "carenote"),
			SSLMode:  getEnv("PG_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("PG_MAX_CONNS", 20),
			MaxIdle:  getEnvAsInt("PG_MAX_IDLE", 5),
		},
		CouchDB: CouchDBConfig{
			Host:     getEnv("COUCHDB_HOST", "localhost"),
			Port:     getEnv("COUCHDB_PORT", "5984"),
			User:     getEnv("COUCHDB_USER", "admin"),
			Password: getEnv("COUCHDB_PASSWORD", "password"),
			Name:     getEnv("COUCHDB_NAME", "carenote_users"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		Encryption: EncryptionConfig{
			Secret: getEnv("ENCRYPTION_SECRET", ""),
		},
		Extraction: ExtractionConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout: extractionTimeout,
		},
		Dispatcher: DispatcherConfig{
			Enabled:   getEnvAsBool("REMINDER_DISPATCH_ENABLED", true),
			Interval:  dispatchInterval,
			BatchSize: getEnvAsInt("REMINDER_DISPATCH_BATCH", 100),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 65536)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Encryption.Secret == "" {
		if cfg.Server.Env != "development" {
			return nil, fmt.Errorf("ENCRYPTION_SECRET is required")
		}
		cfg.Encryption.Secret = "dev-encryption-secret-change-me"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
