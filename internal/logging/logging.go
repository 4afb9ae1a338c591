// Package logging provides structured logging setup for the fleet runtime.
package logging

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vendabots/fleet-runtime/internal/config"
)

const serviceName = "botfleet"

var baseLogger *logrus.Entry

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Setup configures the global logger from runtime configuration.
func Setup(cfg *config.FleetConfig) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatterFor(cfg.Env))

	baseLogger = logger.WithFields(logrus.Fields{
		"service": serviceName,
		"env":     cfg.Env,
	})

	return baseLogger, nil
}

// Logger returns the configured base logger, initializing a default one when
// Setup has not run yet (useful for early boot errors).
func Logger() *logrus.Entry {
	if baseLogger != nil {
		return baseLogger
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(formatterFor("production"))
	baseLogger = logger.WithField("service", serviceName)

	return baseLogger
}

// WithBot returns a logger entry scoped to a bot.
func WithBot(botID uint) *logrus.Entry {
	return Logger().WithField("bot_id", botID)
}

// WithChat returns a logger entry scoped to a bot/chat pair.
func WithChat(botID uint, chatID int64) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{"bot_id": botID, "chat_id": chatID})
}

func formatterFor(env string) logrus.Formatter {
	fieldMap := logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}

	if env == "development" {
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		}
	}

	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap:        fieldMap,
	}
}

func parseLevel(value string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}
