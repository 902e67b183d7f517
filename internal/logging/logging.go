// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerSetupParams struct {
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
}

// Setup configures the standard logrus logger and returns it.
func Setup(params LoggerSetupParams) *logrus.Logger {
	logger := logrus.StandardLogger()
	if params.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(GetLevel(params.LogLevel))

	if params.LogFileName == "" {
		logger.SetOutput(os.Stdout)
		logger.Debug("writing logs only to STDOUT")
		return logger
	}

	if !strings.HasSuffix(params.LogFileName, ".log") {
		params.LogFileName += ".log"
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   params.LogFileName,
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		Compress:   true,
	}

	if params.LogToStdout {
		logger.SetOutput(io.MultiWriter(os.Stdout, lumberJackLogger))
		logger.Debug("writing logs to file and STDOUT")
	} else {
		logger.SetOutput(lumberJackLogger)
	}
	return logger
}

// GetLevel parses a level name. Unknown names select info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "trace":
		return logrus.TraceLevel
	case "warn", "warning":
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
