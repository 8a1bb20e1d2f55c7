package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CusTimeEncoder creates a custom time encoder that adds the prefix and formats the time.
func CusTimeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(config.Prefix + t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    config.ZapEncodeLevel(),
		EncodeTime:     CusTimeEncoder(config),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if config.Format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// exactLevel enables exactly one level, and only while min allows it.
func exactLevel(level zapcore.Level, min zap.AtomicLevel) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level && min.Enabled(l)
	}
}

// buildCores creates one file core per level so every level lands in its own
// file, plus a single terminal core when LogInTerminal is set. All cores share
// min, so changing it later takes effect without rebuilding the logger.
func buildCores(config Config, min zap.AtomicLevel) ([]zapcore.Core, []*levelWriter) {
	encoder := GetEncoder(config)

	var (
		cores   []zapcore.Core
		writers []*levelWriter
	)
	if config.LogInTerminal {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(stdout)), min))
	}
	if config.Director == "" {
		return cores, nil
	}
	for level := zapcore.DebugLevel; level <= zapcore.FatalLevel; level++ {
		w := newLevelWriter(config, level.String())
		writers = append(writers, w)
		cores = append(cores, zapcore.NewCore(encoder.Clone(), w, exactLevel(level, min)))
	}
	return cores, writers
}
