// Package rlog provides the two loggers used throughout rangedl: a plain
// "UI" logger that prints undecorated, user-facing status lines, and a
// structured diagnostic logger (github.com/sirupsen/logrus) for warnings
// and errors.
package rlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// plainFormatter renders only the log message, producing bare status lines
// instead of logrus's default key=value decoration.
type plainFormatter struct{}

func (plainFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return append([]byte(e.Message), '\n'), nil
}

// NewUILogger returns a logger that writes undecorated lines to w, used for
// the user-facing status messages ("Downloading...", "Downloaded P%", etc.).
func NewUILogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(plainFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// NewDiagLogger returns a structured logger for internal diagnostics
// (metadata decode failures, fallocate fallbacks) with fields, written to
// stderr.
func NewDiagLogger(verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: false,
	})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
