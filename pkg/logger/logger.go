package logger

import (
	"go.uber.org/zap"
)

var logger *zap.Logger

// NewLogger builds a zap logger for the given environment.
func NewLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "prod", "production":
		return zap.NewProduction()
	case "test":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}

func MustNewLogger(environment string) *zap.Logger {
	return zap.Must(NewLogger(environment))
}

func InitLogger(environment string) (*zap.Logger, error) {
	l, err := NewLogger(environment)
	if err != nil {
		return nil, err
	}

	logger = l
	zap.ReplaceGlobals(l)
	return l, nil
}

// GetLogger returns the process logger, or a no-op logger before InitLogger.
func GetLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}
