package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scrapwatch/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/scrapwatch?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			machine_id TEXT NOT NULL,
			scrap_index INTEGER NOT NULL,
			sum DOUBLE PRECISION NOT NULL,
			avg DOUBLE PRECISION NOT NULL,
			sample_count INTEGER NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
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

func (s *postgresStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (machine_id, scrap_index, sum, avg, sample_count, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (machine_id, scrap_index) DO UPDATE SET
			sum = EXCLUDED.sum,
			avg = EXCLUDED.avg,
			sample_count = EXCLUDED.sample_count,
			ts = EXCLUDED.ts`,
		snap.MachineID,
		snap.ScrapIndex,
		snap.Sum,
		snap.Avg,
		snap.Count,
		snap.Timestamp.UTC(),
	)
	return err
}
