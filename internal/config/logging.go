package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the log section.
func (l LogConfig) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", l.Level, err)
	}
	logger.SetLevel(level)
	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log.format %q", l.Format)
	}
	return logger, nil
}
