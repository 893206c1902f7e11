package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

var _ driven.PatientStore = (*Store)(nil)

const (
	selectSnapshot = `SELECT snapshot FROM medguard_patients WHERE id = $1`
	selectIDs      = `SELECT COALESCE(array_agg(id ORDER BY id), '{}') FROM medguard_patients`
)

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads patient snapshots from PostgreSQL.
type Store struct {
	db    querier
	close func()
}

// Connect opens a pool for url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &Store{db: pool, close: pool.Close}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// Get retrieves a patient snapshot by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.PatientRecord, error) {
	var raw []byte
	if err := s.db.QueryRow(ctx, selectSnapshot, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
		}
		return nil, fmt.Errorf("query patient: %w", err)
	}

	var record domain.PatientRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode patient %s: %w", id, err)
	}
	// The row key wins over whatever the document says.
	record.ID = id
	return &record, nil
}

// List returns all patient IDs in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.QueryRow(ctx, selectIDs).Scan(&ids); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
