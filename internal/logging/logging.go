// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// Setup sets the level and format of the standard logger. Unknown levels fall
// back to info; unknown formats fall back to text.
func Setup(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)

	lvl, err := logger.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logger.InfoLevel
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logger.JSONFormatter{})
	default:
		logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}
}
