package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewConsoleCore creates a zapcore.Core that writes to stdout only.
// Used by the CLI when no log file is configured.
//
// Development mode uses the colored human-readable encoder; production mode
// uses JSON.
func NewConsoleCore(level zapcore.Level, isDev bool) zapcore.Core {
	var encoder zapcore.Encoder
	if isDev {
		encoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	return zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
}

// NewMultiCore creates a zapcore.Core that tees output to both console and a
// rotated log file.
//
// The file output always uses JSON encoding for structured log processing.
// The console output uses the colored human-readable encoder in development
// mode and JSON in production mode.
//
// Example:
//
//	core := NewMultiCore(zapcore.InfoLevel, "mistral-ocr.log", true)
//	logger := zap.New(core)
func NewMultiCore(level zapcore.Level, filePath string, isDev bool) zapcore.Core {
	return NewMultiCoreWithWriters(level, zapcore.AddSync(os.Stdout), NewFileWriter(filePath), isDev)
}

// NewMultiCoreWithWriters creates a zapcore.Core that tees output to the
// provided writers. Useful for tests and custom output destinations.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileEncoder := zapcore.NewJSONEncoder(NewEncoderConfig())
	fileCore := zapcore.NewCore(fileEncoder, fileWriter, level)

	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	return zapcore.NewTee(consoleCore, fileCore)
}
