package repository

import (
	"context"
	"database/sql"
	"time"

	"smart_bartender/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// LevelRepo persists the volume estimate of each reservoir.
type LevelRepo interface {
	SaveLevel(ctx context.Context, reservoir int, ml float64) error
	LoadLevels(ctx context.Context) (map[int]float64, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.BarEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.BarEvent, error)
}

type Repository struct {
	LevelRepo LevelRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		LevelRepo: NewLevelSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
