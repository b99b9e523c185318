package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the LOG_LEVEL vocabulary (ERROR, WARN, INFO, DEBUG) onto zap levels.
// Unknown values fall back to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return zapcore.ErrorLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "DEBUG", "TRACE":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a console logger at the given level
func New(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	return cfg.Build()
}

// NewFromEnv creates a logger based on the LOG_LEVEL environment variable
func NewFromEnv() (*zap.Logger, error) {
	return New(ParseLevel(os.Getenv("LOG_LEVEL")))
}
