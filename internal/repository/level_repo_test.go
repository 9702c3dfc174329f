package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"smart_bartender/internal/repository"
	"smart_bartender/internal/repository/db"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLevelSQLite_SaveLevel_ClampsNegative(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(conn *sql.DB) { _ = conn.Close() }(conn)

	repo := repository.NewLevelSQLite(conn)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reservoir_levels")).
		WithArgs(3, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveLevel(context.Background(), 3, -12); err != nil {
		t.Fatalf("SaveLevel() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLevelSQLite_SaveLevel_DBError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(conn *sql.DB) { _ = conn.Close() }(conn)

	repo := repository.NewLevelSQLite(conn)
	mock.ExpectExec("INSERT INTO reservoir_levels").WillReturnError(errors.New("disk full"))

	err = repo.SaveLevel(context.Background(), 1, 70)
	if err == nil || !strings.Contains(err.Error(), "reservoir 1") || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("want wrapped error, got %v", err)
	}
}

func TestLevelSQLite_LoadLevels(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(conn *sql.DB) { _ = conn.Close() }(conn)

	repo := repository.NewLevelSQLite(conn)

	rows := sqlmock.NewRows([]string{"reservoir", "volume_ml"}).
		AddRow(1, 70.0).
		AddRow(3, 50.0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reservoir, volume_ml FROM reservoir_levels")).
		WillReturnRows(rows)

	got, err := repo.LoadLevels(context.Background())
	if err != nil {
		t.Fatalf("LoadLevels() error = %v", err)
	}
	want := map[int]float64{1: 70, 3: 50}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadLevels() = %v, want %v", got, want)
	}
}

func TestLevelSQLite_LoadLevels_QueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(conn *sql.DB) { _ = conn.Close() }(conn)

	repo := repository.NewLevelSQLite(conn)
	mock.ExpectQuery("SELECT reservoir").WillReturnError(errors.New("locked"))

	if _, err := repo.LoadLevels(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLevelSQLite_RoundTripOnSQLite(t *testing.T) {
	conn, err := db.InitDB(filepath.Join(t.TempDir(), "bartender.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer func() { _ = conn.Close() }()

	repo := repository.NewLevelSQLite(conn)
	ctx := context.Background()

	for id, ml := range map[int]float64{1: 120, 2: 400, 3: 150} {
		if err := repo.SaveLevel(ctx, id, ml); err != nil {
			t.Fatalf("SaveLevel(%d): %v", id, err)
		}
	}
	if err := repo.SaveLevel(ctx, 1, 70); err != nil {
		t.Fatalf("SaveLevel update: %v", err)
	}

	got, err := repo.LoadLevels(ctx)
	if err != nil {
		t.Fatalf("LoadLevels: %v", err)
	}
	want := map[int]float64{1: 70, 2: 400, 3: 150}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadLevels() = %v, want %v", got, want)
	}
}
