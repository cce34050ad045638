package util

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package. Onboarding code logs through
// WithDevice and WithStep so each line names the device it concerns.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel parses a logrus level name ("debug", "warn", ...).
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogFile appends log lines to path instead of stderr. The file stays
// open for the life of the process.
func SetLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	Logger.SetOutput(f)
	return nil
}

// SetJSONFormat switches to one JSON object per line.
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithDevice scopes log lines to one device.
func WithDevice(device string) *logrus.Entry {
	return Logger.WithField("device", device)
}

// WithStep scopes log lines to one onboarding step of a device.
func WithStep(device, step string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"device": device, "step": step})
}

func Debug(args ...interface{}) {
	Logger.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
