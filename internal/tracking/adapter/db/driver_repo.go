package db

import (
	"context"
	"fmt"
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

type DriverRepo struct {
	db core.IDB
}

func NewDriverRepo(db core.IDB) *DriverRepo {
	return &DriverRepo{db: db}
}

func (dr *DriverRepo) Get(ctx context.Context, userID string) (models.Driver, error) {
	return ScanDriver(dr.db.GetPool().QueryRow(ctx, `SELECT `+DriverColumns+` FROM drivers WHERE user_id = $1`, userID))
}

func (dr *DriverRepo) List(ctx context.Context) ([]models.Driver, error) {
	if err := dr.db.IsAlive(); err != nil {
		return nil, xerrors.ErrDBConn
	}

	rows, err := dr.db.GetPool().Query(ctx, `SELECT `+DriverColumns+` FROM drivers ORDER BY status, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := []models.Driver{}
	for rows.Next() {
		d, err := ScanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// Touch records a heartbeat. It is not an event of its own.
func (dr *DriverRepo) Touch(ctx context.Context, userID string, at time.Time) error {
	tag, err := dr.db.GetPool().Exec(ctx, `UPDATE drivers SET last_seen_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("touch driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (dr *DriverRepo) SetStatus(ctx context.Context, userID, status string, at time.Time) (models.Driver, error) {
	var updated models.Driver
	err := db.WithTx(ctx, dr.db.GetPool(), func(tx pgx.Tx) error {
		current, err := ScanDriver(tx.QueryRow(ctx, `SELECT `+DriverColumns+` FROM drivers WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		if current.Status == models.DriverBusy {
			return core.ErrDriverBusy
		}
		if current.Status == status {
			updated = current
			return nil
		}

		updated, err = ScanDriver(tx.QueryRow(ctx, `
			UPDATE drivers SET status = $2, last_seen_at = $3
			WHERE user_id = $1
			RETURNING `+DriverColumns, userID, status, at))
		if err != nil {
			return fmt.Errorf("update driver status: %w", err)
		}
		return outbox.Write(ctx, tx, "drivers", events.Update, updated, current)
	})
	if err != nil {
		return models.Driver{}, err
	}
	return updated, nil
}
