// Package database defines the insertions and transactions to the database
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vita-api/internal/shared"

	"github.com/go-sql-driver/mysql"
)

// ExecuteTransaction executes one transaction with one or multiple database
// executions.
func ExecuteTransaction(ctx context.Context, writeDB *sql.DB, fns []func(*sql.Tx) error) error {
	tx, err := writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, fn := range fns {
		if err := fn(tx); err != nil {
			return fmt.Errorf("failed to execute transaction function: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveMessages batch-inserts chat messages for one user.
func SaveMessages(ctx context.Context, db *sql.DB, userID uint64, msgs []shared.StoredMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	sqlStr := `INSERT INTO chat_message (id, user_id, role, content, created_at) VALUES`
	vals := []any{}
	for _, m := range msgs {
		sqlStr += "(?, ?, ?, ?, ?),"
		vals = append(vals, m.ID, userID, m.Role, m.Content, m.CreatedAt)
	}
	sqlStr = strings.TrimSuffix(sqlStr, ",")

	if _, err := db.ExecContext(ctx, sqlStr, vals...); err != nil {
		return fmt.Errorf("failed to save chat messages: %w", err)
	}
	return nil
}

// ListMessages returns one page of a user's chat history, newest first, with
// the total row count for pagination.
func ListMessages(ctx context.Context, db *sql.DB, userID uint64, page, perPage int) ([]shared.StoredMessage, int, error) {
	var total int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_message WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count chat messages: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
	SELECT id, role, content, created_at
	FROM chat_message
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ? OFFSET ?
	`, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var msgs []shared.StoredMessage
	for rows.Next() {
		var m shared.StoredMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed iterating chat messages: %w", err)
	}
	return msgs, total, nil
}

// GetProfileDoc returns the raw profile document for a user, or nil when the
// user has no profile yet.
func GetProfileDoc(ctx context.Context, db *sql.DB, userID uint64) ([]byte, error) {
	var doc []byte
	err := db.QueryRowContext(ctx, `SELECT profile FROM user_profile WHERE user_id = ?`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return doc, nil
}

// UpsertProfileDoc writes the full profile document inside a transaction.
func UpsertProfileDoc(ctx context.Context, tx *sql.Tx, userID uint64, doc []byte) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO user_profile (user_id, profile, updated_at)
	VALUES (?, ?, NOW())
	ON DUPLICATE KEY UPDATE profile = VALUES(profile), updated_at = NOW()
	`, userID, doc)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// ProfileStore is the SQL implementation of the profile document store.
// Reads go to the replica, the update path reads its own writes.
type ProfileStore struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewProfileStore(writeDB, readDB *sql.DB) *ProfileStore {
	return &ProfileStore{writeDB: writeDB, readDB: readDB}
}

func (s *ProfileStore) GetDoc(ctx context.Context, userID uint64) ([]byte, error) {
	return GetProfileDoc(ctx, s.readDB, userID)
}

func (s *ProfileStore) GetDocForUpdate(ctx context.Context, userID uint64) ([]byte, error) {
	return GetProfileDoc(ctx, s.writeDB, userID)
}

func (s *ProfileStore) UpsertDoc(ctx context.Context, userID uint64, doc []byte) error {
	return ExecuteTransaction(ctx, s.writeDB, []func(*sql.Tx) error{
		func(tx *sql.Tx) error {
			return UpsertProfileDoc(ctx, tx, userID, doc)
		},
	})
}

// CreateUser inserts a new account row. Duplicate usernames surface as the
// domain error, not a raw driver error.
func CreateUser(ctx context.Context, db *sql.DB, username, email string) (uint64, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO user (username, email, locked, created_at) VALUES (?, ?, 0, NOW())`, username, email)
	if err != nil {
		var merr *mysql.MySQLError
		if errors.As(err, &merr) && merr.Number == 1062 {
			return 0, shared.ErrUsernameTaken
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new user id: %w", err)
	}
	return uint64(id), nil
}
