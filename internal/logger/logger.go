package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// encoderConfig is the JSON layout shared by the server and worker
var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	FunctionKey:    zapcore.OmitKey,
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.MillisDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

func level(debugMode bool) zap.AtomicLevel {
	if debugMode {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel)
}

// NewProductionLogger creates a JSON logger tagged with the process name
// (smart-schedule, smart-schedule-worker). Error entries carry stack traces.
func NewProductionLogger(service string, debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = level(debugMode)
	config.Encoding = "json"
	config.EncoderConfig = encoderConfig
	config.DisableStacktrace = false
	if debugMode {
		// LLM request/response debug lines must not be sampled away
		config.Sampling = nil
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service)), nil
}

// NewCLILogger returns a console logger on stderr when verbose, otherwise a no-op
// logger so command output stays clean.
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	config := zap.NewDevelopmentConfig()
	config.Level = level(true)
	config.DisableStacktrace = true
	return config.Build()
}

// Sync flushes buffered entries; call it before exit. A nil logger is ignored.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
