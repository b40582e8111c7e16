// internal/database/friend.go

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/huddle/internal/friends"
	"github.com/jason-s-yu/huddle/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FriendStore implements friends.Store on PostgreSQL.
//
// Transactions on a pair of users take a transaction scoped advisory lock keyed
// by friends.PairKey, so two transactions on the same pair never interleave.
// The partial unique index on pending (sender_id, receiver_id) backs this up.
type FriendStore struct {
	reader
	pool *pgxpool.Pool
}

// NewFriendStore returns a store using pool. Run Migrate first.
func NewFriendStore(pool *pgxpool.Pool) *FriendStore {
	return &FriendStore{reader: reader{q: pool}, pool: pool}
}

// CreateUser inserts the user and its empty friend list in one transaction.
func (s *FriendStore) CreateUser(ctx context.Context, u *models.User) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (id, username, created_at) VALUES ($1, $2, $3)`,
			u.ID, u.Username, u.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO friend_lists (owner_id) VALUES ($1)`, u.ID)
		return err
	})
	if isPgError(err, pgUniqueViolation) {
		return friends.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *FriendStore) RunInTx(ctx context.Context, a, b uuid.UUID, fn func(tx friends.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// reinterpret the hash bits; the lock only needs a stable int8
		key := int64(friends.PairKey(a, b))
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
			return fmt.Errorf("failed to lock user pair: %w", err)
		}
		return fn(&pgTx{reader: reader{q: tx}, tx: tx})
	})
}

type pgTx struct {
	reader
	tx pgx.Tx
}

func (t *pgTx) FindActiveRequest(ctx context.Context, sender, receiver uuid.UUID) (*models.FriendRequest, error) {
	q := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests
		WHERE sender_id=$1 AND receiver_id=$2 AND status='pending'
	`
	return scanRequest(t.q.QueryRow(ctx, q, sender, receiver))
}

func (t *pgTx) AddFriend(ctx context.Context, owner, other uuid.UUID) error {
	q := `
		INSERT INTO friend_list_members (owner_id, friend_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id, friend_id) DO NOTHING
	`
	_, err := t.tx.Exec(ctx, q, owner, other)
	if isPgError(err, pgForeignKeyViolation) {
		return friends.ErrFriendListMissing
	}
	if err != nil {
		return fmt.Errorf("failed to add friend: %w", err)
	}
	return nil
}

func (t *pgTx) RemoveFriend(ctx context.Context, owner, other uuid.UUID) error {
	exists, err := t.listExists(ctx, owner)
	if err != nil {
		return err
	}
	if !exists {
		return friends.ErrFriendListMissing
	}
	_, err = t.tx.Exec(ctx, `DELETE FROM friend_list_members WHERE owner_id=$1 AND friend_id=$2`, owner, other)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	return nil
}

func (t *pgTx) PutRequest(ctx context.Context, req *models.FriendRequest) error {
	q := `
		INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, q,
		req.ID, req.Sender, req.Receiver, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if isPgError(err, pgUniqueViolation) {
		return friends.ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("failed to store friend request: %w", err)
	}
	return nil
}

// reader holds the queries shared by the pool and transactions.
type reader struct {
	q querier
}

func (r reader) listExists(ctx context.Context, owner uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM friend_lists WHERE owner_id=$1)`, owner).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up friend list: %w", err)
	}
	return exists, nil
}

func (r reader) GetFriendList(ctx context.Context, owner uuid.UUID) (*models.FriendList, error) {
	exists, err := r.listExists(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, friends.ErrFriendListMissing
	}

	rows, err := r.q.Query(ctx, `SELECT friend_id FROM friend_list_members WHERE owner_id=$1`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query friend list: %w", err)
	}
	defer rows.Close()

	fl := models.NewFriendList(owner)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		fl.Friends[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fl, nil
}

func (r reader) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	q := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests
		WHERE id=$1
	`
	return scanRequest(r.q.QueryRow(ctx, q, id))
}

func (r reader) ListActiveRequests(ctx context.Context, user uuid.UUID) ([]*models.FriendRequest, error) {
	q := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests
		WHERE (sender_id=$1 OR receiver_id=$1) AND status='pending'
		ORDER BY created_at, id
	`
	rows, err := r.q.Query(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query friend requests: %w", err)
	}
	defer rows.Close()

	var out []*models.FriendRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r reader) LatestAcceptedRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error) {
	q := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests
		WHERE status='accepted'
		  AND ((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanRequest(r.q.QueryRow(ctx, q, a, b))
}

func scanRequest(row pgx.Row) (*models.FriendRequest, error) {
	var (
		req    models.FriendRequest
		status string
	)
	err := row.Scan(&req.ID, &req.Sender, &req.Receiver, &status, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, friends.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan friend request: %w", err)
	}
	req.Status = models.FriendRequestStatus(status)
	if !req.Status.Valid() {
		return nil, fmt.Errorf("friend request %v has unknown status %q", req.ID, status)
	}
	return &req, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
