// Package logger constructs the logrus logger shared by all components.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger configured from the FILESHARE_LOG_LEVEL
// environment variable, defaulting to info.
func NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	level, err := logrus.ParseLevel(os.Getenv("FILESHARE_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
