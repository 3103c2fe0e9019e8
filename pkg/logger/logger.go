package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// Tests import packages that log without going through main, so the logger
// has to be usable before Init is called.
func init() {
	Init("nano-social", "development", "info")
}

// Init (re)builds the process logger. Production output is JSON so it can be
// shipped as-is, everything else stays human readable on stderr.
func Init(service, env, level string) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)

	if env == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	Log = logger.WithFields(logrus.Fields{"service": service, "env": env})
}

// Logger returns the underlying logrus logger, e.g. to plug it into other
// libraries' writers.
func Logger() *logrus.Logger {
	return logger
}
