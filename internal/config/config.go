package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Config holds the reference server configuration loaded from environment
// variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	DevMode  bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// ClientConfig holds settings for a board client session.
type ClientConfig struct {
	ServerURL      string
	WorkspaceID    uuid.UUID
	MemberID       string
	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	CommandRate    float64
	CommandBurst   int
}

// Load reads the server configuration from environment variables.
// Defaults are safe for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("BOARDSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("BOARDSYNC_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateRPS, err := getEnvFloat("BOARDSYNC_RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("BOARDSYNC_RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	devMode, err := getEnvBool("BOARDSYNC_DEV", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("BOARDSYNC_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("BOARDSYNC_DB_USER", "boardsync"),
			Password: getEnv("BOARDSYNC_DB_PASSWORD", ""),
			DBName:   getEnv("BOARDSYNC_DB_NAME", "boardsync_dev"),
			SSLMode:  getEnv("BOARDSYNC_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("BOARDSYNC_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Addr:           getEnv("BOARDSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    corsOrigins,
			RateLimitRPS:   rateRPS,
			RateLimitBurst: rateBurst,
		},
		DevMode: devMode,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Database.SSLMode == "disable" && !c.DevMode {
		log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("BOARDSYNC_RATE_LIMIT_RPS must be positive, got %v", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("BOARDSYNC_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadClient reads the client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	workspaceID, err := getEnvUUID("BOARDSYNC_WORKSPACE_ID")
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	requestTimeout, err := getEnvDuration("BOARDSYNC_REQUEST_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	reconnectMin, err := getEnvDuration("BOARDSYNC_RECONNECT_MIN", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	reconnectMax, err := getEnvDuration("BOARDSYNC_RECONNECT_MAX", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	commandRate, err := getEnvFloat("BOARDSYNC_COMMAND_RATE", 20)
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	commandBurst, err := getEnvInt("BOARDSYNC_COMMAND_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	cfg := &ClientConfig{
		ServerURL:      strings.TrimRight(getEnv("BOARDSYNC_SERVER_URL", "http://localhost:8080"), "/"),
		WorkspaceID:    workspaceID,
		MemberID:       getEnv("BOARDSYNC_MEMBER_ID", ""),
		RequestTimeout: requestTimeout,
		ReconnectMin:   reconnectMin,
		ReconnectMax:   reconnectMax,
		CommandRate:    commandRate,
		CommandBurst:   commandBurst,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.LoadClient: %w", err)
	}

	return cfg, nil
}

func (c *ClientConfig) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BOARDSYNC_SERVER_URL must be an http(s) URL, got %q", c.ServerURL)
	}
	if c.WorkspaceID == uuid.Nil {
		return errors.New("BOARDSYNC_WORKSPACE_ID is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.ReconnectMin <= 0 {
		return fmt.Errorf("BOARDSYNC_RECONNECT_MIN must be positive, got %s", c.ReconnectMin)
	}
	if c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("BOARDSYNC_RECONNECT_MAX must be >= BOARDSYNC_RECONNECT_MIN, got %s", c.ReconnectMax)
	}
	if c.CommandRate <= 0 {
		return fmt.Errorf("BOARDSYNC_COMMAND_RATE must be positive, got %v", c.CommandRate)
	}
	if c.CommandBurst < 1 {
		return fmt.Errorf("BOARDSYNC_COMMAND_BURST must be >= 1, got %d", c.CommandBurst)
	}
	return nil
}

// WebSocketURL returns the broadcast channel endpoint derived from ServerURL.
func (c *ClientConfig) WebSocketURL() string {
	switch {
	case strings.HasPrefix(c.ServerURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.ServerURL, "https://") + "/ws/workspaces"
	default:
		return "ws://" + strings.TrimPrefix(c.ServerURL, "http://") + "/ws/workspaces"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvUUID(key string) (uuid.UUID, error) {
	v := os.Getenv(key)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing %s=%q as uuid: %w", key, v, err)
	}
	return id, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
