/*
Package store is the PostgreSQL persistence layer of the messaging subsystem.

Every operation that touches row-level-secured tables runs inside a transaction
that first pins the acting user via set_config('app.user_id', ..., true), so
the database enforces that users only ever see messages they sent or received.
Policy violations surface as chat.ErrPermissionDenied rather than silently
empty results wherever the database reports them.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"mindease/internal/app/chat"
	"mindease/internal/app/db"
	"mindease/internal/app/user"
	"mindease/internal/pkg/logx"
)

// Store executes all database operations of the messaging subsystem.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New constructs a Store on top of an initialized connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logx.Logger().With().Str("component", "Store").Logger(),
	}
}

// inUserTx runs fn inside a transaction scoped to the acting user. The
// app.user_id setting is transaction-local, so pooled connections never leak
// one user's scope into another's queries.
func (s *Store) inUserTx(ctx context.Context, actingUserID string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('app.user_id', $1, true)`, actingUserID); err != nil {
		return fmt.Errorf("scope tx to user: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FetchMessagesInvolving returns every message the user sent or received,
// ascending by timestamp. The WHERE clause mirrors the row policy; the policy
// remains the actual access boundary.
func (s *Store) FetchMessagesInvolving(ctx context.Context, userID string) ([]chat.Message, error) {
	var msgs []chat.Message

	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id::text, sender_id::text, receiver_id::text, text, "timestamp", status
			FROM messages
			WHERE sender_id::text = $1 OR receiver_id::text = $1
			ORDER BY "timestamp" ASC`, userID)
		if err != nil {
			return fmt.Errorf("query messages: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, senderID, receiverID, text, status string
				ts                                     time.Time
			)
			if err := rows.Scan(&id, &senderID, &receiverID, &text, &ts, &status); err != nil {
				return fmt.Errorf("scan message row: %w", err)
			}

			m, err := chat.MessageFromRow(id, senderID, receiverID, text, ts, status)
			if err != nil {
				s.logger.Warn().Err(err).Str("message_id", id).Msg("Skipping malformed message row")
				continue
			}
			msgs = append(msgs, m)
		}
		return rows.Err()
	})
	if err != nil {
		if db.IsPermissionDenied(err) {
			return nil, fmt.Errorf("fetch messages for %s: %w", userID, chat.ErrPermissionDenied)
		}
		return nil, err
	}

	return msgs, nil
}

// SendMessage persists one message from the acting user and returns the row as
// the database recorded it, with its server-assigned id and timestamp. Nothing
// is written when any part fails.
func (s *Store) SendMessage(ctx context.Context, senderID, receiverID, text string) (chat.Message, error) {
	var msg chat.Message

	err := s.inUserTx(ctx, senderID, func(tx pgx.Tx) error {
		var (
			id, outSender, outReceiver, outText, status string
			ts                                          time.Time
		)
		err := tx.QueryRow(ctx, `
			INSERT INTO messages (sender_id, receiver_id, text)
			VALUES ($1, $2, $3)
			RETURNING id::text, sender_id::text, receiver_id::text, text, "timestamp", status`,
			senderID, receiverID, text,
		).Scan(&id, &outSender, &outReceiver, &outText, &ts, &status)
		if err != nil {
			return err
		}

		msg, err = chat.MessageFromRow(id, outSender, outReceiver, outText, ts, status)
		return err
	})
	if err != nil {
		switch {
		case db.IsPermissionDenied(err):
			return chat.Message{}, fmt.Errorf("send from %s: %w", senderID, chat.ErrPermissionDenied)
		case db.IsForeignKeyViolation(err):
			return chat.Message{}, fmt.Errorf("send to %s: %w", receiverID, chat.ErrCounterpartyNotFound)
		default:
			return chat.Message{}, fmt.Errorf("send message: %w", err)
		}
	}

	return msg, nil
}

const userColumns = `id::text, name, email, role, COALESCE(avatar_url, '')`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.AvatarURL); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

// ResolveUsersByIDs returns the users matching the given ids. Ids with no
// matching row are simply absent from the result; callers decide what a
// missing identity means.
func (s *Store) ResolveUsersByIDs(ctx context.Context, ids []string) ([]user.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	defer rows.Close()

	users := make([]user.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser fetches one user by id.
func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, fmt.Errorf("user %s: %w", id, chat.ErrCounterpartyNotFound)
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUsersByRole lists users holding the given role, for the contact picker.
func (s *Store) GetUsersByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = $1
		ORDER BY name`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserAvatar stores the new avatar key on the user row and returns the
// key it replaced, empty when the user had no avatar. The caller owns cleanup
// of the replaced object.
func (s *Store) UpdateUserAvatar(ctx context.Context, userID, avatarKey string) (string, error) {
	var previous string
	err := s.pool.QueryRow(ctx, `
		WITH previous AS (
			SELECT COALESCE(avatar_url, '') AS key FROM users WHERE id::text = $1
		)
		UPDATE users
		SET avatar_url = $2
		WHERE id::text = $1
		RETURNING (SELECT key FROM previous)`, userID, avatarKey).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("user %s: %w", userID, chat.ErrCounterpartyNotFound)
		}
		return "", fmt.Errorf("update avatar: %w", err)
	}
	return previous, nil
}

// JournalEntry is one private journal record belonging to a user.
type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListJournalEntries returns the acting user's journal, newest first. The row
// policy restricts entries to the owner, so the scoped transaction is the
// access check.
func (s *Store) ListJournalEntries(ctx context.Context, userID string) ([]JournalEntry, error) {
	var entries []JournalEntry

	err := s.inUserTx(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id::text, user_id::text, content, COALESCE(mood, ''), created_at
			FROM journal_entries
			ORDER BY created_at DESC`)
		if err != nil {
			return fmt.Errorf("query journal: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var e JournalEntry
			if err := rows.Scan(&e.ID, &e.UserID, &e.Content, &e.Mood, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan journal row: %w", err)
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		if db.IsPermissionDenied(err) {
			return nil, fmt.Errorf("journal for %s: %w", userID, chat.ErrPermissionDenied)
		}
		return nil, err
	}

	return entries, nil
}
