package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
)

// SessionRepository persists browser sessions.
type SessionRepository struct {
	base
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB, opts ...Option) *SessionRepository {
	return &SessionRepository{base: newBase(db, opts)}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := r.rebind(`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, session.ID(), session.UserID(), session.CreatedAt().UTC(), session.ExpiresAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get returns the session with the given ID.
//
// Unknown IDs return [shared.ErrSessionNotFound]; sessions past their expiry return
// [shared.ErrSessionExpired] together with the session.
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var (
		userID               string
		createdAt, expiresAt time.Time
	)

	query := r.rebind(`SELECT user_id, created_at, expires_at FROM sessions WHERE id = ?`)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&userID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session := &models.Session{}
	session.SetID(id)
	session.SetUserID(userID)
	session.SetCreatedAt(createdAt)
	session.SetExpiresAt(expiresAt)

	if session.Expired(time.Now()) {
		return session, shared.ErrSessionExpired
	}
	return session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return affected(result, shared.ErrSessionNotFound)
}

// DeleteByUser ends every session belonging to userID.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// Cleanup removes sessions that expired at or before now and returns how many were removed.
func (r *SessionRepository) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
