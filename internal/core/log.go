package core

import (
	"os"

	"github.com/sirupsen/logrus"
)

const logFileMode = 0o666

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

// Logger returns the logger shared by all frame metrics packages.
func Logger() *logrus.Logger {
	return logger
}

// SetLogOutputFile redirects the shared logger to filePath, truncating it.
func SetLogOutputFile(filePath string) error {
	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, logFileMode)
	if err != nil {
		return err
	}
	logger.SetOutput(f)
	return nil
}
