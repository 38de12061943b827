package store

import (
	"fmt"
	"os"
	"path"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"br.com.tavares.disparo/internal/model"
)

// RunLog keeps a small audit trail of bulk dispatch runs: identifiers,
// timing and counts only. Message content and recipients are never written.
type RunLog struct {
	db *sqlx.DB
}

func NewRunLog(config Config) (*RunLog, error) {
	if err := os.MkdirAll(config.DataDirectory(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbName := path.Join(config.DataDirectory(), "dispatch-runs.db")

	db, err := sqlx.Connect("sqlite3", "file:"+dbName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	runlog := &RunLog{db}
	if err := runlog.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return runlog, nil
}

func (l *RunLog) Close() error {
	return l.db.Close()
}

func (l *RunLog) createTables() error {
	_, err := l.db.Exec(`create table if not exists dispatch_run(
		ID         text not null primary key,
		StartedAt  DATETIME not null,
		FinishedAt DATETIME not null,
		Total      int not null,
		Sent       int not null,
		Errors     int not null
	)`)
	if err != nil {
		return fmt.Errorf("creating dispatch_run table: %w", err)
	}
	return nil
}

func (l *RunLog) Record(run *model.DispatchRun) error {
	res, err := l.db.NamedExec(`insert into dispatch_run
		(ID, StartedAt, FinishedAt, Total, Sent, Errors)
		values(:ID, :StartedAt, :FinishedAt, :Total, :Sent, :Errors)`, run)

	if err != nil {
		return fmt.Errorf("inserting dispatch run: %w", err)
	}
	if rows, err := res.RowsAffected(); rows != 1 {
		return fmt.Errorf("expected 1 row to be affected, got %d", rows)
	} else if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	return nil
}

func (l *RunLog) Recent(limit int) ([]model.DispatchRun, error) {
	runs := []model.DispatchRun{}
	err := l.db.Select(&runs, `select * from dispatch_run order by StartedAt desc limit ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching dispatch runs: %w", err)
	}
	return runs, nil
}
