package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore backs the document contract with a single JSONB table. It
// serves deployments that self-host instead of using the hosted API.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a Postgres connection with sane defaults and
// ensures the documents table exists.
func NewPostgresStore(connString string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	body := cloneDoc(doc)
	body["id"] = id
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3)
	`, collection, id, data)
	if err != nil {
		return "", wrapPgErr(err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrapPgErr(err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, doc Document) error {
	body := cloneDoc(doc)
	body["id"] = id
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET data = $3 WHERE collection = $1 AND id = $2
	`, collection, id, data)
	if err != nil {
		return wrapPgErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return wrapPgErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1`
	args := []any{collection}
	if q.Field != "" {
		query += fmt.Sprintf(" AND data->>$%d = $%d", len(args)+1, len(args)+2)
		args = append(args, q.Field, q.Equals)
	}
	if q.SortBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY data->>$%d %s", len(args)+1, dir)
		args = append(args, q.SortBy)
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapPgErr(err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, wrapPgErr(err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// wrapPgErr classifies driver errors as transient so they land on the
// sync queue rather than surfacing to callers.
func wrapPgErr(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
