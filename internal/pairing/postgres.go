package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists pairing requests in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps the given pool. The schema is managed by Migrate.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, req Request) (UpsertResult, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pairing_requests (id, channel, account_id, sender_id, code, status, meta)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		ON CONFLICT (channel, account_id, sender_id) DO NOTHING`,
		req.ID, req.Channel, req.AccountID, req.SenderID, req.Code, req.Meta)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("insert pairing request: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return UpsertResult{Code: req.Code, Created: true}, nil
	}

	var code string
	err = s.pool.QueryRow(ctx, `
		UPDATE pairing_requests SET updated_at = now()
		WHERE channel = $1 AND account_id = $2 AND sender_id = $3
		RETURNING code`,
		req.Channel, req.AccountID, req.SenderID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UpsertResult{}, ErrNotFound
		}
		return UpsertResult{}, fmt.Errorf("read existing pairing request: %w", err)
	}
	return UpsertResult{Code: code, Created: false}, nil
}

func (s *PostgresStore) Approve(ctx context.Context, channel, accountID, code string) (Request, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE pairing_requests SET status = 'approved', updated_at = now()
		WHERE channel = $1 AND account_id = $2 AND upper(code) = upper($3) AND status = 'pending'
		RETURNING id, channel, account_id, sender_id, code, status, meta, created_at, updated_at`,
		channel, accountID, code)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("approve pairing request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, channel, accountID, senderID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pairing_requests
		WHERE channel = $1 AND account_id = $2 AND sender_id = $3`,
		channel, accountID, senderID)
	if err != nil {
		return fmt.Errorf("revoke pairing request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, channel, accountID string, status Status) ([]Request, error) {
	query := `
		SELECT id, channel, account_id, sender_id, code, status, meta, created_at, updated_at
		FROM pairing_requests
		WHERE channel = $1 AND account_id = $2`
	args := []any{channel, accountID}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pairing requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pairing request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReadAllowFrom(ctx context.Context, channel, accountID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sender_id FROM pairing_requests
		WHERE channel = $1 AND account_id = $2 AND status = 'approved'
		ORDER BY sender_id`,
		channel, accountID)
	if err != nil {
		return nil, fmt.Errorf("read allow list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var senderID string
		if err := rows.Scan(&senderID); err != nil {
			return nil, fmt.Errorf("scan sender id: %w", err)
		}
		out = append(out, senderID)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM pairing_requests
		WHERE status = 'pending' AND updated_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired pairing requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var status string
	err := row.Scan(&req.ID, &req.Channel, &req.AccountID, &req.SenderID,
		&req.Code, &status, &req.Meta, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	return req, nil
}
