package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"uplus-loyalty/internal/infra/metrics"
)

// PoolStatter is the slice of *pgxpool.Pool the reporter reads.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// PoolReporter publishes connection pool gauges.
type PoolReporter struct {
	interval time.Duration
	pool     PoolStatter
	log      *zerolog.Logger
}

func NewPoolReporter(interval time.Duration, pool PoolStatter, logger *zerolog.Logger) *PoolReporter {
	repLog := logger.With().Str("component", "PoolReporter").Logger()
	return &PoolReporter{interval: interval, pool: pool, log: &repLog}
}

func (r *PoolReporter) Run(ctx context.Context) error {
	r.log.Debug().Msg("Starting pool reporter")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := r.pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
