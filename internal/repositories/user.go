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

const userColumns = `id, spotify_id, display_name, email, profile_image, access_token, refresh_token, token_expiration, created_at, updated_at`

// UserRepository implements [models.Repository] for [models.User] persistence.
//
// Access and refresh tokens are encrypted on write and decrypted on read.
type UserRepository struct {
	base
	cipher *shared.TokenCipher
}

// NewUserRepository creates a new [UserRepository] with the given database connection and token cipher
func NewUserRepository(db *sql.DB, cipher *shared.TokenCipher, opts ...Option) *UserRepository {
	return &UserRepository{base: newBase(db, opts), cipher: cipher}
}

func (r *UserRepository) sealTokens(user *models.User) (access, refresh string, err error) {
	if access, err = r.cipher.Encrypt(user.AccessToken()); err != nil {
		return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if refresh, err = r.cipher.Encrypt(user.RefreshToken()); err != nil {
		return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return access, refresh, nil
}

func expiration(user *models.User) sql.NullTime {
	t := user.TokenExpiration()
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// Create inserts a new user into the database with a generated ID
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	access, refresh, err := r.sealTokens(user)
	if err != nil {
		return err
	}

	id := shared.GenerateID()
	query := r.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		id, user.SpotifyID(), nullString(user.DisplayName()), nullString(user.Email()), nullString(user.ProfileImage()),
		nullString(access), nullString(refresh), expiration(user), user.CreatedAt().UTC(), user.UpdatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := r.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	user, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetBySpotifyID retrieves a user by Spotify account ID
func (r *UserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	query := r.rebind(`SELECT ` + userColumns + ` FROM users WHERE spotify_id = ?`)
	user, err := r.scan(r.db.QueryRowContext(ctx, query, spotifyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: spotify id %s", shared.ErrUserNotFound, spotifyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Update modifies an existing user's profile and tokens
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	access, refresh, err := r.sealTokens(user)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := r.rebind(`
		UPDATE users
		SET display_name = ?, email = ?, profile_image = ?, access_token = ?, refresh_token = ?, token_expiration = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		nullString(user.DisplayName()), nullString(user.Email()), nullString(user.ProfileImage()),
		nullString(access), nullString(refresh), expiration(user), now, user.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := affected(result, fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())); err != nil {
		return err
	}

	user.SetUpdatedAt(now)
	return nil
}

// UpdateTokens persists only the user's OAuth credentials
func (r *UserRepository) UpdateTokens(ctx context.Context, user *models.User) error {
	access, refresh, err := r.sealTokens(user)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := r.rebind(`UPDATE users SET access_token = ?, refresh_token = ?, token_expiration = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, nullString(access), nullString(refresh), expiration(user), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if err := affected(result, fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())); err != nil {
		return err
	}

	user.SetUpdatedAt(now)
	return nil
}

// Upsert inserts the user or updates the row with the same Spotify ID.
//
// An empty refresh token on user never overwrites a stored one. On return user carries
// the persisted ID, timestamps and refresh token.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	access, refresh, err := r.sealTokens(user)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := r.rebind(`
		INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (spotify_id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			profile_image = excluded.profile_image,
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, users.refresh_token),
			token_expiration = excluded.token_expiration,
			updated_at = excluded.updated_at
		RETURNING id
	`)

	var id string
	err = r.db.QueryRowContext(ctx, query,
		shared.GenerateID(), user.SpotifyID(), nullString(user.DisplayName()), nullString(user.Email()), nullString(user.ProfileImage()),
		nullString(access), nullString(refresh), expiration(user), now, now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	stored, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	user.SetID(id)
	user.SetRefreshToken(stored.RefreshToken())
	user.SetCreatedAt(stored.CreatedAt())
	user.SetUpdatedAt(stored.UpdatedAt())
	return nil
}

// Delete removes a user by ID along with its snapshots and sessions
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affected(result, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id))
}

// List retrieves all users matching the given criteria, oldest first.
//
// Supported criteria keys are "spotify_id" and "email".
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1 = 1`
	args := []any{}

	if spotifyID, ok := criteria["spotify_id"].(string); ok && spotifyID != "" {
		query += " AND spotify_id = ?"
		args = append(args, spotifyID)
	}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scan(row scanner) (*models.User, error) {
	var (
		id, spotifyID                    string
		displayName, email, profileImage sql.NullString
		accessToken, refreshToken        sql.NullString
		tokenExpiration                  sql.NullTime
		createdAt, updatedAt             time.Time
	)

	err := row.Scan(&id, &spotifyID, &displayName, &email, &profileImage,
		&accessToken, &refreshToken, &tokenExpiration, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(spotifyID, displayName.String, email.String)
	user.SetID(id)
	user.SetProfileImage(profileImage.String)
	user.SetAccessToken(r.cipher.Decrypt(accessToken.String))
	user.SetRefreshToken(r.cipher.Decrypt(refreshToken.String))
	if tokenExpiration.Valid {
		user.SetTokenExpiration(tokenExpiration.Time)
	}
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	return user, nil
}
