// Package observability builds the process logger and the tracing pipeline.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogOptions struct {
	Development bool
	Level       string
	Service     string
}

// NewLogger returns a JSON logger on stdout, or a console logger in
// development.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if opts.Level != "" {
		if err := lvl.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	var core zapcore.Core
	if opts.Development {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	} else {
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), lvl)
	}

	log := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if opts.Service != "" {
		log = log.With(zap.String("service.name", opts.Service))
	}
	return log, nil
}
