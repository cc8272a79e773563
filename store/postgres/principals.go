// Package postgres implements [authcore.PrincipalStore] on a pgx connection
// pool. It is the reference adapter; deployments with an existing data layer
// implement the interface themselves.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authcore"
)

// Schema is the minimal table the adapter expects. Run it through your
// migration tooling; the adapter never executes DDL.
const Schema = `
CREATE TABLE IF NOT EXISTS principals (
    id          UUID PRIMARY KEY,
    identifier  TEXT NOT NULL UNIQUE,
    secret_hash TEXT NOT NULL,
    role        TEXT NOT NULL,
    status      SMALLINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const uniqueViolation = "23505"

const principalColumns = `id, identifier, secret_hash, role, status, created_at`

// PrincipalStore is a pgx-backed [authcore.PrincipalStore].
type PrincipalStore struct {
	db *pgxpool.Pool
}

var _ authcore.PrincipalStore = (*PrincipalStore)(nil)

func NewPrincipalStore(db *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{db: db}
}

func scanPrincipal(row pgx.Row) (authcore.Principal, error) {
	var (
		p      authcore.Principal
		id     uuid.UUID
		status int16
	)
	err := row.Scan(&id, &p.Identifier, &p.SecretHash, &p.Role, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.Principal{}, authcore.ErrPrincipalNotFound
		}
		return authcore.Principal{}, fmt.Errorf("scan principal: %w", err)
	}
	p.ID = id.String()
	p.Status = authcore.Status(status)
	return p, nil
}

func (s *PrincipalStore) GetByIdentifier(ctx context.Context, identifier string) (authcore.Principal, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE identifier = $1`,
		identifier,
	)
	return scanPrincipal(row)
}

func (s *PrincipalStore) GetByID(ctx context.Context, id string) (authcore.Principal, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return authcore.Principal{}, authcore.ErrPrincipalNotFound
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = $1`,
		pid,
	)
	return scanPrincipal(row)
}

func (s *PrincipalStore) Create(ctx context.Context, input authcore.CreatePrincipalInput) (authcore.Principal, error) {
	p := authcore.Principal{
		ID:         uuid.NewString(),
		Identifier: input.Identifier,
		SecretHash: input.SecretHash,
		Role:       input.Role,
		Status:     input.Status,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO principals (id, identifier, secret_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Identifier, p.SecretHash, p.Role, int16(p.Status), p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authcore.Principal{}, authcore.ErrDuplicateIdentifier
		}
		return authcore.Principal{}, fmt.Errorf("insert principal: %w", err)
	}

	return p, nil
}

func (s *PrincipalStore) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	return s.update(ctx,
		`UPDATE principals SET secret_hash = $2 WHERE id = $1`,
		id, secretHash,
	)
}

func (s *PrincipalStore) UpdateStatus(ctx context.Context, id string, status authcore.Status) error {
	return s.update(ctx,
		`UPDATE principals SET status = $2 WHERE id = $1`,
		id, int16(status),
	)
}

func (s *PrincipalStore) update(ctx context.Context, query, id string, arg any) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return authcore.ErrPrincipalNotFound
	}

	tag, err := s.db.Exec(ctx, query, pid, arg)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrPrincipalNotFound
	}
	return nil
}
