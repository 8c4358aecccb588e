package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"potholeserver/internal/dto"
	"potholeserver/internal/model"
)

// PotholeRepository implements repository.PotholeRepository for SQLite.
type PotholeRepository struct {
	db *DB
}

// NewPotholeRepository creates a new SQLite pothole repository.
func NewPotholeRepository(db *DB) *PotholeRepository {
	return &PotholeRepository{db: db}
}

// Insert adds a new pothole record to the database.
func (r *PotholeRepository) Insert(ctx context.Context, p *model.Pothole) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO potholes (name, latitude, longitude, image_url, session_id, captured_at, damage_percentage, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Latitude, p.Longitude, p.ImageURL, p.SessionID, p.CapturedAt, p.DamagePercentage, p.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pothole: %w", err)
	}

	return result.LastInsertId()
}

// GetAll retrieves potholes newest first, filtered by session when set.
func (r *PotholeRepository) GetAll(ctx context.Context, filter *dto.PotholeFilter) ([]model.Pothole, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT id, name, latitude, longitude, image_url, session_id, captured_at, damage_percentage, created_by, created_at
		FROM potholes` + where + ` ORDER BY created_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query potholes: %w", err)
	}
	defer rows.Close()

	var potholes []model.Pothole
	for rows.Next() {
		var p model.Pothole
		var createdBy sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.ImageURL, &p.SessionID,
			&p.CapturedAt, &p.DamagePercentage, &createdBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pothole: %w", err)
		}
		if createdBy.Valid {
			p.CreatedBy = &createdBy.String
		}
		potholes = append(potholes, p)
	}

	return potholes, rows.Err()
}

// GetTotalCount returns the number of potholes matching the filter, ignoring pagination.
func (r *PotholeRepository) GetTotalCount(ctx context.Context, filter *dto.PotholeFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM potholes`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count potholes: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (r *PotholeRepository) Close() error {
	return r.db.Close()
}

func buildWhere(filter *dto.PotholeFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter != nil && filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
