package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scrapwatch/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:scrapwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			machine_id TEXT NOT NULL,
			scrap_index INTEGER NOT NULL,
			sum REAL NOT NULL,
			avg REAL NOT NULL,
			sample_count INTEGER NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (machine_id, scrap_index)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (machine_id, scrap_index, sum, avg, sample_count, ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (machine_id, scrap_index) DO UPDATE SET
			sum = excluded.sum,
			avg = excluded.avg,
			sample_count = excluded.sample_count,
			ts = excluded.ts`,
		snap.MachineID,
		snap.ScrapIndex,
		snap.Sum,
		snap.Avg,
		snap.Count,
		snap.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}
