package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"whisk/pkg/errors"
)

// SyncState is one entity's sync bookkeeping row.
type SyncState struct {
	Entity      string
	Cursor      time.Time
	LastRunAt   time.Time
	LastRunRows int64
}

// LoadCursor returns the stored cursor for an entity. A zero time means
// the entity has never been synced and a full extraction is due.
func (s *Service) LoadCursor(ctx context.Context, schema, entity string) (time.Time, error) {
	if err := ValidIdentifier(schema); err != nil {
		return time.Time{}, err
	}

	query := fmt.Sprintf("SELECT CURSOR_TS FROM %s.SYNC_STATE WHERE ENTITY = ?", schema)

	var cursor sql.NullTime
	err := s.QueryRow(ctx, query, entity).Scan(&cursor)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, errors.ErrCodeCursorLoad, "failed to load sync cursor").
			WithContext("entity", entity)
	}

	if !cursor.Valid {
		return time.Time{}, nil
	}
	return cursor.Time, nil
}

// SaveCursor records the new cursor position after a successful sync.
func (s *Service) SaveCursor(ctx context.Context, schema, entity string, cursor time.Time, rows int64) error {
	if err := ValidIdentifier(schema); err != nil {
		return err
	}

	query := fmt.Sprintf(`MERGE INTO %s.SYNC_STATE AS tgt
USING (SELECT ? AS ENTITY, ? AS CURSOR_TS, CURRENT_TIMESTAMP() AS LAST_RUN_AT, ? AS LAST_RUN_ROWS) AS src
ON tgt.ENTITY = src.ENTITY
WHEN MATCHED THEN UPDATE SET tgt.CURSOR_TS = src.CURSOR_TS, tgt.LAST_RUN_AT = src.LAST_RUN_AT, tgt.LAST_RUN_ROWS = src.LAST_RUN_ROWS
WHEN NOT MATCHED THEN INSERT (ENTITY, CURSOR_TS, LAST_RUN_AT, LAST_RUN_ROWS) VALUES (src.ENTITY, src.CURSOR_TS, src.LAST_RUN_AT, src.LAST_RUN_ROWS)`,
		schema)

	if _, err := s.Exec(ctx, query, entity, cursor, rows); err != nil {
		return errors.Wrap(err, errors.ErrCodeCursorSave, "failed to save sync cursor").
			WithContext("entity", entity)
	}
	return nil
}

// ListSyncState returns the bookkeeping rows for all synced entities.
func (s *Service) ListSyncState(ctx context.Context, schema string) ([]SyncState, error) {
	if err := ValidIdentifier(schema); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT ENTITY, CURSOR_TS, LAST_RUN_AT, LAST_RUN_ROWS FROM %s.SYNC_STATE ORDER BY ENTITY", schema)

	rows, err := s.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCursorLoad, "failed to list sync state")
	}
	defer rows.Close()

	var states []SyncState
	for rows.Next() {
		var state SyncState
		var cursor, lastRun sql.NullTime
		var lastRows sql.NullInt64

		if err := rows.Scan(&state.Entity, &cursor, &lastRun, &lastRows); err != nil {
			return nil, err
		}
		if cursor.Valid {
			state.Cursor = cursor.Time
		}
		if lastRun.Valid {
			state.LastRunAt = lastRun.Time
		}
		if lastRows.Valid {
			state.LastRunRows = lastRows.Int64
		}
		states = append(states, state)
	}

	return states, rows.Err()
}

// TableCount returns the row count of a table.
func (s *Service) TableCount(ctx context.Context, schema, table string) (int64, error) {
	if err := ValidIdentifier(schema); err != nil {
		return 0, err
	}
	if err := ValidIdentifier(table); err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, table)
	if err := s.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, errors.SQLError("failed to count rows", query, err)
	}
	return count, nil
}
