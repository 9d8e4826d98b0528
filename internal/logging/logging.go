// Package logging builds the process logger. Output always goes to stderr:
// stdout carries the MCP or ACP wire protocol and must stay clean.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFile is the debug log written inside the sparkle home.
const LogFile = "sparkle-mcp.log"

// Options configures New.
type Options struct {
	// Debug lowers the level to debug and tees output to LogFile in Dir.
	Debug bool
	// Dir is the sparkle home. Only used in debug mode.
	Dir string
}

// New returns a console logger on stderr.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		if opts.Dir != "" {
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating log dir: %w", err)
			}
			cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(opts.Dir, LogFile))
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("sparkle"), nil
}
