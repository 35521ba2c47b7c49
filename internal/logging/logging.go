// Package logging holds the default logger shared by the stretch packages.
package logging

import (
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
)

// DefaultLevel is the verbosity used when the caller supplies no logger.
const DefaultLevel = logger.LevelWarning

// OrDefault returns l, or a logrus-backed logger at DefaultLevel when l is nil.
func OrDefault(l logger.Logger) logger.Logger {
	if l != nil {
		return l
	}

	return logrus.Default().WithLevel(DefaultLevel)
}

// WithLevel returns OrDefault(l) restricted to level.
func WithLevel(l logger.Logger, level logger.Level) logger.Logger {
	return OrDefault(l).WithLevel(level)
}
