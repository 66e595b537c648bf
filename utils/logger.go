package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// InitLogger init logger
func InitLogger() {
	config := zap.NewProductionConfig()

	// stdout is reserved for the report
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if os.Getenv("GO_ENV") == "production" {
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		config.Development = true
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if raw := os.Getenv("LOCALESYNC_LOG_LEVEL"); raw != "" {
		if level, err := zapcore.ParseLevel(raw); err == nil {
			logLevel.SetLevel(level)
		}
	}
	config.Level = logLevel

	options := []zap.Option{
		zap.AddStacktrace(zapcore.ErrorLevel),
	}

	var err error
	Logger, err = config.Build(options...)
	if err != nil {
		panic(err)
	}
}

// SetLevel changes the level of the global logger at runtime.
func SetLevel(level zapcore.Level) {
	logLevel.SetLevel(level)
}
