package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_REPORT_TTL", "1h")
	t.Setenv("REDIS_DIAL_TIMEOUT", "not-a-duration")

	cfg := NewRedisConfigFromEnv()
	assert.Equal(t, "cache.internal", cfg.Host)
	assert.Equal(t, "6379", cfg.Port)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, time.Hour, cfg.ReportTTL)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout, "invalid values fall back to defaults")
}

func TestKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	p := NewReportPublisherWithClient(client, &RedisConfig{KeyPrefix: "app:"}, nil)
	assert.Equal(t, "app:report:42", p.ReportKey("42"))
	assert.Equal(t, "app:report:latest", p.LatestKey())

	p = NewReportPublisherWithClient(client, nil, nil)
	assert.Equal(t, "localesync:report:42", p.ReportKey("42"))
}

func TestPublishUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	p := NewReportPublisherWithClient(client, nil, nil)
	defer p.Close()

	err := p.Publish(context.Background(), "run", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, IsRedisUnavailable(err))

	_, err = p.Latest(context.Background())
	require.Error(t, err)
	assert.True(t, IsRedisUnavailable(err))
}

func TestNewReportPublisherPingFails(t *testing.T) {
	_, err := NewReportPublisher(context.Background(), &RedisConfig{
		Host:        "127.0.0.1",
		Port:        "1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	}, nil)
	require.Error(t, err)
	assert.True(t, IsRedisUnavailable(err))
}

func TestIsRedisUnavailable(t *testing.T) {
	assert.False(t, IsRedisUnavailable(errors.New("other")))
	assert.True(t, IsRedisUnavailable(&RedisUnavailableError{Err: errors.New("down")}))
	assert.ErrorIs(t, &RedisUnavailableError{Err: ErrNoReport}, ErrNoReport)
}
