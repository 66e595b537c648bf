// Package redis publishes run reports so dashboards and CI jobs can pick up
// the latest localization status.
package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix = "localesync:"
	defaultChannel   = "localesync:reports"
	defaultTTL       = 7 * 24 * time.Hour
	latestSuffix     = "latest"
)

// ErrNoReport is returned when nothing has been published yet.
var ErrNoReport = errors.New("no published report")

// RedisUnavailableError represents an error when Redis is unavailable
type RedisUnavailableError struct {
	Err error
}

func (e *RedisUnavailableError) Error() string {
	return fmt.Sprintf("redis is unavailable: %v", e.Err)
}

func (e *RedisUnavailableError) Unwrap() error { return e.Err }

// IsRedisUnavailable checks if the error is RedisUnavailableError
func IsRedisUnavailable(err error) bool {
	var target *RedisUnavailableError
	return errors.As(err, &target)
}

// RedisConfig stores Redis configuration parameters
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
	Channel      string
	ReportTTL    time.Duration
}

// NewRedisConfigFromEnv creates Redis configuration from environment variables
func NewRedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Host:         getEnvWithDefault("REDIS_HOST", "localhost"),
		Port:         getEnvWithDefault("REDIS_PORT", "6379"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           getEnvInt("REDIS_DB", 0),
		MaxRetries:   getEnvInt("REDIS_MAX_RETRIES", 3),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		KeyPrefix:    getEnvWithDefault("REDIS_REPORT_PREFIX", defaultKeyPrefix),
		Channel:      getEnvWithDefault("REDIS_REPORT_CHANNEL", defaultChannel),
		ReportTTL:    getEnvDuration("REDIS_REPORT_TTL", defaultTTL),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
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

// ReportPublisher stores reports under a per-run key, mirrors the newest
// one under a stable key and announces the run id on a channel.
type ReportPublisher struct {
	client    redis.UniversalClient
	keyPrefix string
	channel   string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewReportPublisher connects using config. The connection is verified
// with a ping so an unreachable server fails fast.
func NewReportPublisher(ctx context.Context, config *RedisConfig, logger *zap.Logger) (*ReportPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Initializing Redis connection",
		zap.String("host", config.Host),
		zap.String("port", config.Port),
		zap.String("password_set", map[bool]string{true: "yes", false: "no"}[config.Password != ""]),
	)

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("Redis is not available",
			zap.Error(err),
			zap.String("host", config.Host),
			zap.String("port", config.Port),
		)
		return nil, &RedisUnavailableError{Err: err}
	}

	return NewReportPublisherWithClient(client, config, logger), nil
}

// NewReportPublisherWithClient wraps an existing client.
func NewReportPublisherWithClient(client redis.UniversalClient, config *RedisConfig, logger *zap.Logger) *ReportPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &ReportPublisher{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		channel:   defaultChannel,
		ttl:       defaultTTL,
		logger:    logger,
	}
	if config != nil {
		if config.KeyPrefix != "" {
			p.keyPrefix = config.KeyPrefix
		}
		if config.Channel != "" {
			p.channel = config.Channel
		}
		if config.ReportTTL > 0 {
			p.ttl = config.ReportTTL
		}
	}
	return p
}

// ReportKey returns the key a run's report is stored under.
func (p *ReportPublisher) ReportKey(runID string) string {
	return p.keyPrefix + "report:" + runID
}

// LatestKey returns the key holding the newest report.
func (p *ReportPublisher) LatestKey() string {
	return p.keyPrefix + "report:" + latestSuffix
}

// Publish stores payload for runID and notifies subscribers.
func (p *ReportPublisher) Publish(ctx context.Context, runID string, payload []byte) error {
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.ReportKey(runID), payload, p.ttl)
	pipe.Set(ctx, p.LatestKey(), payload, p.ttl)
	pipe.Publish(ctx, p.channel, runID)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("Failed to publish report to Redis",
			zap.Error(err),
			zap.String("run_id", runID),
		)
		return &RedisUnavailableError{Err: err}
	}

	p.logger.Info("Published report to Redis",
		zap.String("run_id", runID),
		zap.String("key", p.ReportKey(runID)),
		zap.Duration("ttl", p.ttl),
	)
	return nil
}

// Latest returns the newest published report.
func (p *ReportPublisher) Latest(ctx context.Context) ([]byte, error) {
	data, err := p.client.Get(ctx, p.LatestKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoReport
		}
		return nil, &RedisUnavailableError{Err: err}
	}
	return data, nil
}

// Close closes the Redis connection.
func (p *ReportPublisher) Close() error {
	return p.client.Close()
}
