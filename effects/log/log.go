// Package log emits structured log entries as effects, through the logger
// of the fiber running them.
package log

import (
	"os"

	"github.com/on-the-ground/fiber_ive_go/effects"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

// LogPayload is one log entry: the level, message string, and optional structured fields.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

func write(logger *zap.Logger, payload LogPayload) {
	fields := make([]zap.Field, 0, len(payload.Fields))
	for k, v := range payload.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch payload.Level {
	case LogInfo:
		logger.Info(payload.Message, fields...)
	case LogWarn:
		logger.Warn(payload.Message, fields...)
	case LogError:
		logger.Error(payload.Message, fields...)
	case LogDebug:
		logger.Debug(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
}

// LogEff writes payload with the logger of the running fiber, which carries
// the fiber id.
func LogEff[R, E any](payload LogPayload) effects.Effect[R, E, struct{}] {
	return effects.DescriptorWith(func(d effects.FiberDescriptor) effects.Effect[R, E, struct{}] {
		return effects.Sync[R, E](func() struct{} {
			write(d.Logger, payload)
			return struct{}{}
		})
	})
}

// Debug logs msg at debug level with the running fiber's logger.
func Debug[R, E any](msg string, fields map[string]any) effects.Effect[R, E, struct{}] {
	return LogEff[R, E](LogPayload{Level: LogDebug, Message: msg, Fields: fields})
}

func Info[R, E any](msg string, fields map[string]any) effects.Effect[R, E, struct{}] {
	return LogEff[R, E](LogPayload{Level: LogInfo, Message: msg, Fields: fields})
}

func Warn[R, E any](msg string, fields map[string]any) effects.Effect[R, E, struct{}] {
	return LogEff[R, E](LogPayload{Level: LogWarn, Message: msg, Fields: fields})
}

func Error[R, E any](msg string, fields map[string]any) effects.Effect[R, E, struct{}] {
	return LogEff[R, E](LogPayload{Level: LogError, Message: msg, Fields: fields})
}

// Sync flushes the running fiber's logger. A failed flush is logged, not
// raised.
func Sync[R, E any]() effects.Effect[R, E, struct{}] {
	return effects.DescriptorWith(func(d effects.FiberDescriptor) effects.Effect[R, E, struct{}] {
		return effects.Sync[R, E](func() struct{} {
			if err := d.Logger.Sync(); err != nil {
				d.Logger.Warn("failed to sync logger", zap.Error(err))
			}
			return struct{}{}
		})
	})
}

// NewTestLogger writes every entry to stdout in console format.
func NewTestLogger() *zap.Logger {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)
	return zap.New(consoleCore)
}
