package bootstrap

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCloseReleasesOwnedDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectClose()

	app := &App{}
	app.adoptDB(sqlDB, false)
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("database was not closed: %v", err)
	}
}

func TestCloseLeavesSharedDatabaseOpen(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = sqlDB.Close()
	})

	app := &App{}
	app.adoptDB(sqlDB, true)
	if err := app.Close(); err != nil {
		t.Fatalf("shared pool must not be closed: %v", err)
	}
	if app.DB != sqlDB {
		t.Fatalf("expected DB to be set")
	}
}

func TestCloseJoinsErrorsInReverseOrder(t *testing.T) {
	var order []string
	app := &App{closers: []func() error{
		func() error { order = append(order, "first"); return errors.New("first failed") },
		func() error { order = append(order, "second"); return nil },
	}}
	err := app.Close()
	if err == nil || err.Error() != "first failed" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(order) != 2 || order[0] != "second" {
		t.Fatalf("expected reverse order, got %v", order)
	}
}
