package main

import (
	"github.com/TheZeroSlave/zapsentry"
	"github.com/catalogfi/autoswap/pkg/config"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a development logger, or a production one at LOG_LEVEL when it is set. Errors are also sent to
// Sentry when a DSN is configured.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if cfg.LogLevel == "" {
		logger, err = zap.NewDevelopment()
	} else {
		level, parseErr := zapcore.ParseLevel(cfg.LogLevel)
		if parseErr != nil {
			return nil, parseErr
		}
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zapCfg.Build()
	}
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		client, err := sentry.NewClient(sentry.ClientOptions{Dsn: cfg.SentryDSN})
		if err != nil {
			return nil, err
		}
		core, err := zapsentry.NewCore(zapsentry.Configuration{Level: zapcore.ErrorLevel}, zapsentry.NewSentryClientFromClient(client))
		if err != nil {
			return nil, err
		}
		logger = zapsentry.AttachCoreToLogger(core, logger)
	}
	return logger, nil
}
