// Package outbox turns committed row changes into RabbitMQ messages.
//
// Repositories call Write inside the same transaction as the row change, so an
// event exists if and only if the change committed. The Relay publishes pending
// rows in id order.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// relayLockKey serializes relays across processes so events keep commit order.
const relayLockKey = 7261001

// Write appends a row change to the outbox inside tx.
func Write(ctx context.Context, tx pgx.Tx, table, changeType string, record, oldRecord any) error {
	rec, err := events.Record(record)
	if err != nil {
		return fmt.Errorf("encode outbox record: %w", err)
	}
	old, err := events.Record(oldRecord)
	if err != nil {
		return fmt.Errorf("encode outbox old record: %w", err)
	}

	q := `INSERT INTO outbox (tbl, type, record, old_record) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, q, table, changeType, rec, old); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, v any) error
}

type store interface {
	// Claim hands up to limit unpublished changes to fn. The first sent changes are
	// marked published; when fn returns an error the next one gets its attempts bumped.
	Claim(ctx context.Context, limit int, fn func(batch []events.RowChange) (int, error)) error
}

type Relay struct {
	store    store
	mb       Publisher
	mylog    logger.Logger
	interval time.Duration
	batch    int
}

func NewRelay(pool *pgxpool.Pool, mb Publisher, mylog logger.Logger) *Relay {
	return &Relay{
		store:    &pgStore{pool: pool},
		mb:       mb,
		mylog:    mylog.Action("outbox_relay"),
		interval: 200 * time.Millisecond,
		batch:    100,
	}
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.mylog.Info("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.mylog.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.mylog.Error("Failed to flush outbox", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many changes went out.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	published := 0
	err := r.store.Claim(ctx, r.batch, func(batch []events.RowChange) (int, error) {
		for i, change := range batch {
			if err := r.mb.PublishJSON(ctx, events.RowChangesExchange, change.RoutingKey(), change); err != nil {
				return i, fmt.Errorf("publish outbox row %d: %w", change.ID, err)
			}
			published++
		}
		return len(batch), nil
	})
	if published > 0 {
		r.mylog.Debug("outbox rows published", "count", published)
	}
	return published, err
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Claim(ctx context.Context, limit int, fn func(batch []events.RowChange) (int, error)) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, relayLockKey).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		return nil
	}

	rows, err := tx.Query(ctx, `
		SELECT id, tbl, type, record, old_record, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return err
	}

	var batch []events.RowChange
	for rows.Next() {
		var (
			c        events.RowChange
			rec, old []byte
		)
		if err := rows.Scan(&c.ID, &c.Table, &c.Type, &rec, &old, &c.CommitTime); err != nil {
			rows.Close()
			return err
		}
		if len(rec) > 0 {
			if err := json.Unmarshal(rec, &c.Record); err != nil {
				rows.Close()
				return fmt.Errorf("decode outbox record %d: %w", c.ID, err)
			}
		}
		if len(old) > 0 {
			if err := json.Unmarshal(old, &c.OldRecord); err != nil {
				rows.Close()
				return fmt.Errorf("decode outbox old record %d: %w", c.ID, err)
			}
		}
		batch = append(batch, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	sent, fnErr := fn(batch)
	if sent > 0 {
		ids := make([]int64, 0, sent)
		for _, c := range batch[:sent] {
			ids = append(ids, c.ID)
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
			return err
		}
	}
	if fnErr != nil && sent < len(batch) {
		if _, err := tx.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1 WHERE id = $1`, batch[sent].ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return fnErr
}
