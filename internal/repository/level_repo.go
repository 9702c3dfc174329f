package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type LevelSQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewLevelSQLite(db *sql.DB) *LevelSQLite {
	return &LevelSQLite{db: db, now: time.Now}
}

const (
	upsertLevelSQL = `
		INSERT INTO reservoir_levels (reservoir, volume_ml, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(reservoir) DO UPDATE SET
			volume_ml=excluded.volume_ml,
			updated_at=excluded.updated_at
	`

	selectLevelsSQL = `SELECT reservoir, volume_ml FROM reservoir_levels`
)

// SaveLevel upserts the estimate of one reservoir.
func (r *LevelSQLite) SaveLevel(ctx context.Context, reservoir int, ml float64) error {
	if ml < 0 {
		ml = 0
	}
	_, err := r.db.ExecContext(ctx, upsertLevelSQL,
		reservoir,
		ml,
		r.now().UTC().Format(sqliteTimestamp),
	)
	if err != nil {
		return fmt.Errorf("save level of reservoir %d: %w", reservoir, err)
	}
	return nil
}

// LoadLevels returns every stored estimate. An empty table yields an empty map.
func (r *LevelSQLite) LoadLevels(ctx context.Context) (map[int]float64, error) {
	rows, err := r.db.QueryContext(ctx, selectLevelsSQL)
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	defer rows.Close()

	out := make(map[int]float64)
	for rows.Next() {
		var (
			id int
			ml float64
		)
		if err := rows.Scan(&id, &ml); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		out[id] = ml
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	return out, nil
}
