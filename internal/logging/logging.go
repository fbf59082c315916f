// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/config"
)

// New returns a logger writing to out at the configured level and format.
func New(cfg config.Log, out io.Writer) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch {
	case cfg.JSON():
		logger.SetFormatter(&logrus.JSONFormatter{})
	case cfg.Format == "" || cfg.Format == "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.Format)
	}
	return logger, nil
}
