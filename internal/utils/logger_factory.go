package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	logFileMaximumSizeMegabytesConstant  = 50
	logFileMaximumBackupsConstant        = 3
	logFileMaximumAgeDaysConstant        = 14
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerSettings selects the level, encoding, and optional rotating log file of a logger.
type LoggerSettings struct {
	Level    LogLevel
	Format   LogFormat
	FilePath string
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger writing to standard error and, when FilePath is set,
// to a size-rotated JSON log file as well.
func (factory *LoggerFactory) CreateLogger(settings LoggerSettings) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[settings.Level]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, settings.Level)
	}

	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder

	var standardErrorEncoder zapcore.Encoder
	switch settings.Format {
	case LogFormatStructured:
		standardErrorEncoder = zapcore.NewJSONEncoder(encoderConfiguration)
	case LogFormatConsole:
		standardErrorEncoder = zapcore.NewConsoleEncoder(encoderConfiguration)
	default:
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, settings.Format)
	}

	levelEnabler := zap.NewAtomicLevelAt(zapLogLevel)
	cores := []zapcore.Core{
		zapcore.NewCore(standardErrorEncoder, zapcore.Lock(os.Stderr), levelEnabler),
	}

	if logFilePath := strings.TrimSpace(settings.FilePath); len(logFilePath) > 0 {
		rotatingFile := &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    logFileMaximumSizeMegabytesConstant,
			MaxBackups: logFileMaximumBackupsConstant,
			MaxAge:     logFileMaximumAgeDaysConstant,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), zapcore.AddSync(rotatingFile), levelEnabler))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
