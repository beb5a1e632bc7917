// Package log adds logging utilities.
package log

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SetLogger sets the default logger's level and format. Unknown levels fall
// back to info.
func SetLogger(level string) {
	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = time.RFC3339
	customFormatter.FullTimestamp = true
	logrus.SetFormatter(customFormatter)
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// ParseLevel maps a level name to a logrus level. The empty name is info.
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, errors.Errorf("unknown log level %q: use trace, debug, info, warn or error", level)
	}
}

// Component returns a logger tagged with the component name.
func Component(name string) logrus.FieldLogger {
	return logrus.StandardLogger().WithField("component", name)
}
