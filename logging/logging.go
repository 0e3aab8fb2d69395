package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	logger  = newLogger()
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Logger returns the shared logger
func Logger() *logrus.Logger {
	return logger
}

// SetupLogger configures the level and, when logFilePath is set, redirects output to that file
func SetupLogger(logFilePath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		logger.SetOutput(f)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		logger.Infof("--- imagedupes log started at %s ---", time.Now().Format(time.RFC3339))
	}

	isSetup = true
	return nil
}

// CloseLogger closes the log file, if any, and restores stderr output
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Infof("--- imagedupes log closed at %s ---", time.Now().Format(time.RFC3339))
		logger.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
	isSetup = false
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// DebugLog logs a message at debug level
func DebugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// LogImageLoaded logs the outcome of decoding one image
func LogImageLoaded(title string, err error) {
	if err != nil {
		logger.WithFields(logrus.Fields{"title": title, "error": err}).Warn("image skipped")
		return
	}
	logger.WithField("title", title).Debug("image loaded")
}

// LogPairSkipped logs a pair that produced no result because its comparison failed
func LogPairSkipped(title1, title2 string, err error) {
	logger.WithFields(logrus.Fields{
		"title1": title1,
		"title2": title2,
		"error":  err,
	}).Warn("comparison failed, pair skipped")
}
