package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldbooking/internal/config"
	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"
)

func getField(ctx context.Context, q querier, id int64) (*models.Field, error) {
	var f models.Field
	err := q.QueryRowContext(ctx, `
		SELECT id, name, open_time, close_time, is_active, created_at, updated_at
		FROM fields WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.OpenTime, &f.CloseTime, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("field %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get field %d: %w", id, err)
	}
	return &f, nil
}

// GetField returns a field by id.
func (db *DB) GetField(ctx context.Context, id int64) (*models.Field, error) {
	return getField(ctx, db.DB, id)
}

func (t *storeTx) GetField(ctx context.Context, id int64) (*models.Field, error) {
	return getField(ctx, t.tx, id)
}

// ListActiveFields returns fields open for booking.
func (db *DB) ListActiveFields(ctx context.Context) ([]models.Field, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, open_time, close_time, is_active, created_at, updated_at
		FROM fields WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []models.Field
	for rows.Next() {
		var f models.Field
		if err := rows.Scan(&f.ID, &f.Name, &f.OpenTime, &f.CloseTime, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// SyncFieldsFromConfig upserts configured fields and deactivates those missing from config.
func (db *DB) SyncFieldsFromConfig(ctx context.Context, fields []config.FieldConfig) error {
	now := time.Now().UTC()
	seen := make(map[int64]struct{}, len(fields))

	for _, f := range fields {
		if f.ID <= 0 {
			return fmt.Errorf("field %q: id must be positive", f.Name)
		}
		open, err := models.ParseClock(f.OpenTime)
		if err != nil {
			return fmt.Errorf("field %d open_time: %w", f.ID, err)
		}
		closing, err := models.ParseClock(f.CloseTime)
		if err != nil {
			return fmt.Errorf("field %d close_time: %w", f.ID, err)
		}
		if open >= closing {
			return fmt.Errorf("field %d: open_time must be before close_time", f.ID)
		}

		// Preserve created_at if the field already exists.
		_, err = db.ExecContext(ctx, `
			INSERT INTO fields (id, name, open_time, close_time, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM fields WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				open_time = excluded.open_time,
				close_time = excluded.close_time,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			f.ID, f.Name, models.FormatClock(open), models.FormatClock(closing), f.IsActive(), f.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync field %d: %w", f.ID, err)
		}
		seen[f.ID] = struct{}{}
	}

	rows, err := db.QueryContext(ctx, `SELECT id FROM fields WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := db.ExecContext(ctx, `UPDATE fields SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate field %d: %w", id, err)
		}
		db.logger.Info().Int64("field_id", id).Msg("field missing from config, deactivated")
	}
	return nil
}
