package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradebot/internal/notify"
)

// Journal records order lifecycle events into PostgreSQL for offline
// analysis. It is an optional sink: when no database URL is configured the
// engine runs without it, and a write failure is logged and dropped so the
// trading loop never blocks on the database.
type Journal struct {
	pool   *pgxpool.Pool
	symbol string
	logger *slog.Logger
}

// Open connects to the database and ensures the events table exists.
func Open(ctx context.Context, databaseURL, symbol string, logger *slog.Logger) (*Journal, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	j := &Journal{pool: pool, symbol: symbol, logger: logger}
	if err := j.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("[JOURNAL] Connected to database")
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	_, err := j.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS order_events (
			id           BIGSERIAL PRIMARY KEY,
			recorded_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			symbol       TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			order_kind   TEXT NOT NULL,
			order_id     BIGINT,
			status       TEXT,
			price        DOUBLE PRECISION,
			quantity     DOUBLE PRECISION,
			executed_qty DOUBLE PRECISION,
			cum_quote    DOUBLE PRECISION,
			level        DOUBLE PRECISION,
			score        DOUBLE PRECISION,
			detail       TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create order_events table: %w", err)
	}
	return nil
}

// Publish implements notify.Sink.
func (j *Journal) Publish(e notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := j.pool.Exec(ctx, `
		INSERT INTO order_events (
			symbol, event_type, order_kind, order_id, status,
			price, quantity, executed_qty, cum_quote, level, score, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.symbol,
		e.Type.String(),
		e.Kind.String(),
		e.OrderID,
		string(e.Status),
		e.Price,
		e.Qty,
		e.ExecQty,
		e.CumQuote,
		e.Level,
		e.Score,
		e.Message,
	)
	if err != nil {
		j.logger.Error("[JOURNAL] Failed to record event",
			"event_type", e.Type.String(), "error", err)
	}
}

// Close releases the connection pool.
func (j *Journal) Close() {
	j.pool.Close()
}
