package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// LogLevel is the lowest pgx trace level forwarded to the logger.
	LogLevel tracelog.LogLevel
}

func NewPool(ctx context.Context, cfg PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	level := cfg.LogLevel
	if level == 0 {
		level = tracelog.LogLevelWarn
	}
	pcfg.ConnConfig.Tracer = &tracelog.TraceLog{Logger: zerologAdapter(logger), LogLevel: level}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// zerologAdapter forwards pgx trace output to logger.
func zerologAdapter(logger zerolog.Logger) tracelog.LoggerFunc {
	return func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var evt *zerolog.Event
		switch level {
		case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
			evt = logger.Debug()
		case tracelog.LogLevelInfo:
			evt = logger.Info()
		case tracelog.LogLevelWarn:
			evt = logger.Warn()
		default:
			evt = logger.Error()
		}
		evt.Str("component", "pgx").Fields(data).Msg(msg)
	}
}
