package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	ctx      context.Context
	dsn      string
	maxConns int32
	mylog    logger.Logger
	pool     *pgxpool.Pool
	mu       sync.RWMutex
}

// Start opens the pool and verifies it with a ping.
func Start(ctx context.Context, dbCfg *config.Postgres, mylog logger.Logger) (*DB, error) {
	return Open(ctx, dbCfg.DSN(), dbCfg.MaxConns, mylog)
}

// Open connects to dsn directly. maxConns <= 0 keeps the pgxpool default.
func Open(ctx context.Context, dsn string, maxConns int32, mylog logger.Logger) (*DB, error) {
	d := &DB{
		ctx:      ctx,
		dsn:      dsn,
		maxConns: maxConns,
		mylog:    mylog,
	}

	if err := d.connect(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) GetPool() *pgxpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// IsAlive pings the DB and tries one reconnect when the ping fails.
func (d *DB) IsAlive() error {
	pool := d.GetPool()
	if pool == nil {
		return fmt.Errorf("DB is not initialized")
	}

	ctx, cancel := context.WithTimeout(d.ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		if err := d.connect(); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
	}
	return nil
}

func (d *DB) Reconnect() error {
	log := d.mylog.Action("db_reconnecting")
	attempt := 10
	for i := 0; i < attempt; i++ {
		log.Info("reconnecting attempt", "attempt-number", i+1)
		if err := d.IsAlive(); err == nil {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("reconnecting failed")
}

func (d *DB) connect() error {
	poolCfg, err := pgxpool.ParseConfig(d.dsn)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	if d.maxConns > 0 {
		poolCfg.MaxConns = d.maxConns
	}

	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.mu.Lock()
	old := d.pool
	d.pool = pool
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// WithTx runs fn inside a transaction. The tx is rolled back unless fn succeeds and commit works.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
