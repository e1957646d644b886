package obs

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var bootID atomic.Value // string

// BootID identifies this process run in every log line. Empty until Init.
func BootID() string {
	id, _ := bootID.Load().(string)
	return id
}

// Init builds the process logger. format is "json" (production encoder) or
// "console"; level is any zap level name ("debug", "info", ...).
func Init(service, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("obs: log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("obs: unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("obs: build logger: %w", err)
	}

	id := uuid.NewString()
	bootID.Store(id)
	logger = logger.With(zap.String("service", service), zap.String("boot_id", id))
	logger.Info("boot", zap.Int("pid", os.Getpid()))
	return logger, nil
}
