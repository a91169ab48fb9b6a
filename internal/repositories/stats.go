package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/statify/internal/models"
	"github.com/desertthunder/statify/internal/shared"
)

// StatsRepository stores [models.UserStat] snapshots.
type StatsRepository struct {
	base
}

// NewStatsRepository creates a new [StatsRepository] with the given database connection
func NewStatsRepository(db *sql.DB, opts ...Option) *StatsRepository {
	return &StatsRepository{base: newBase(db, opts)}
}

// Create inserts a snapshot with a generated ID
func (r *StatsRepository) Create(ctx context.Context, stat *models.UserStat) error {
	if err := stat.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if stat.CreatedAt().IsZero() {
		stat.SetCreatedAt(time.Now().UTC())
	}

	id := shared.GenerateID()
	query := r.rebind(`
		INSERT INTO user_stats (id, user_id, time_range, data_type, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		id, stat.UserID(), stat.TimeRange().String(), stat.DataType(), string(stat.Data()), stat.CreatedAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert user stat: %w", err)
	}

	stat.SetID(id)
	return nil
}

// List returns the user's snapshots matching filter, newest first
func (r *StatsRepository) List(ctx context.Context, userID string, filter models.StatsFilter) ([]*models.UserStat, error) {
	query := `
		SELECT id, user_id, time_range, data_type, data, created_at
		FROM user_stats
		WHERE user_id = ?
	`
	args := []any{userID}

	if filter.DataType != "" {
		query += " AND data_type = ?"
		args = append(args, filter.DataType)
	}

	if filter.TimeRange != "" {
		query += " AND time_range = ?"
		args = append(args, filter.TimeRange)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	stats := []*models.UserStat{}
	for rows.Next() {
		var (
			id, owner, timeRange, dataType string
			data                           []byte
			createdAt                      time.Time
		)

		if err := rows.Scan(&id, &owner, &timeRange, &dataType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user stat: %w", err)
		}

		stat := &models.UserStat{}
		stat.SetID(id)
		stat.SetUserID(owner)
		stat.SetTimeRange(models.TimeRange(timeRange))
		stat.SetDataType(dataType)
		stat.SetData(data)
		stat.SetCreatedAt(createdAt)
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return stats, nil
}

// DeleteByUser removes every snapshot owned by userID and returns the number removed
func (r *StatsRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM user_stats WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user stats: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
