// Package s3 stores locale backups in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no bucket or credentials are set.
var ErrNotConfigured = errors.New("S3 backup storage is not configured")

// S3Config contains S3 configuration from environment variables
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	UseSSL    bool
	PathStyle string
	Prefix    string
}

// getEnv returns environment variable or default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// NewS3ConfigFromEnv reads the S3_* variables.
func NewS3ConfigFromEnv() *S3Config {
	return &S3Config{
		Region:    getEnv("S3_REGION", "us-east-1"),
		Bucket:    getEnv("S3_BUCKET", ""),
		AccessKey: getEnv("S3_ACCESS_KEY", ""),
		SecretKey: getEnv("S3_SECRET_KEY", ""),
		Endpoint:  getEnv("S3_ENDPOINT", ""),
		UseSSL:    getEnvBool("S3_USE_SSL", true),
		PathStyle: getEnv("S3_PATH_STYLE", "auto"),
		Prefix:    getEnv("S3_BACKUP_PREFIX", "locale-backups/"),
	}
}

// Enabled reports whether a bucket was configured at all.
func (c *S3Config) Enabled() bool {
	return c.Bucket != ""
}

func (c *S3Config) validate() error {
	if c.AccessKey == "" || c.SecretKey == "" || c.Bucket == "" {
		return ErrNotConfigured
	}
	return nil
}

// getS3Client creates an S3 client with given configuration
func getS3Client(config *S3Config) (*s3.S3, error) {
	awsConfig := &aws.Config{
		Region:      aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
	}

	// MinIO or other S3-compatible storage
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.DisableSSL = aws.Bool(!config.UseSSL)

		if config.PathStyle == "path" || config.PathStyle == "auto" {
			awsConfig.S3ForcePathStyle = aws.Bool(true)
		}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return s3.New(sess), nil
}

// BackupStore implements backup.Store on top of a bucket.
type BackupStore struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewBackupStore builds a store from config.
func NewBackupStore(config *S3Config, logger *zap.Logger) (*BackupStore, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	client, err := getS3Client(config)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("S3 backup configuration",
		zap.String("bucket", config.Bucket),
		zap.String("region", config.Region),
		zap.String("endpoint", config.Endpoint),
		zap.Bool("use_ssl", config.UseSSL),
		zap.String("path_style", config.PathStyle),
		zap.String("prefix", config.Prefix))

	return NewBackupStoreWithClient(client, config.Bucket, config.Prefix, logger), nil
}

// NewBackupStoreWithClient wraps an existing client.
func NewBackupStoreWithClient(client s3iface.S3API, bucket, prefix string, logger *zap.Logger) *BackupStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BackupStore{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *BackupStore) key(name string) string {
	return s.prefix + strings.TrimLeft(name, "/")
}

// Exists reports whether a backup object is already stored under name.
func (s *BackupStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get backup info: %w", err)
}

// Put uploads a backup object.
func (s *BackupStore) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		s.logger.Error("S3 backup upload failed",
			zap.Error(err),
			zap.String("storage_key", key),
			zap.String("bucket", s.bucket))
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	s.logger.Debug("S3 backup uploaded", zap.String("storage_key", key))
	return nil
}

func contentType(name string) string {
	switch path.Ext(strings.TrimSuffix(name, ".bak")) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".toml":
		return "application/toml"
	default:
		return "application/octet-stream"
	}
}
