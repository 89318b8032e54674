package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/feed"
)

// Config holds all runtime configuration for the trading relay.
type Config struct {
	Port            int
	LogLevel        string
	FeedURL         string
	ReconnectDelay  time.Duration
	FeedReadTimeout time.Duration
	SessionTimeout  time.Duration
	StartingCash    decimal.Decimal
	SendQueueSize   int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	feedURL := getStr("FEED_URL", "ws://localhost:8080/market")

	reconnectDelay, err := getDuration("RECONNECT_DELAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONNECT_DELAY: %w", err)
	}
	if reconnectDelay < feed.MinReconnectDelay {
		reconnectDelay = feed.MinReconnectDelay
	}

	feedReadTimeout, err := getDuration("FEED_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_READ_TIMEOUT: %w", err)
	}
	if feedReadTimeout <= 0 {
		return nil, fmt.Errorf("invalid FEED_READ_TIMEOUT: %v, must be positive", feedReadTimeout)
	}

	sessionTimeout, err := getDuration("SESSION_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_READ_TIMEOUT: %w", err)
	}
	if sessionTimeout <= 0 {
		return nil, fmt.Errorf("invalid SESSION_READ_TIMEOUT: %v, must be positive", sessionTimeout)
	}

	startingCash, err := domain.ParseMoney(getStr("STARTING_CASH", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_CASH: %w", err)
	}

	sendQueueSize, err := getInt("SEND_QUEUE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("invalid SEND_QUEUE_SIZE: %w", err)
	}
	if sendQueueSize < 1 {
		return nil, fmt.Errorf("invalid SEND_QUEUE_SIZE: %d, must be at least 1", sendQueueSize)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		FeedURL:         feedURL,
		ReconnectDelay:  reconnectDelay,
		FeedReadTimeout: feedReadTimeout,
		SessionTimeout:  sessionTimeout,
		StartingCash:    startingCash,
		SendQueueSize:   sendQueueSize,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
