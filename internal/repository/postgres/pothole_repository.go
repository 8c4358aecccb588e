package postgres

import (
	"context"
	"fmt"

	"potholeserver/internal/dto"
	"potholeserver/internal/model"
)

// PotholeRepository implements repository.PotholeRepository for PostgreSQL.
type PotholeRepository struct {
	db    Querier
	close func()
}

// NewPotholeRepository creates a repository over db. closeFn may be nil.
func NewPotholeRepository(db Querier, closeFn func()) *PotholeRepository {
	return &PotholeRepository{db: db, close: closeFn}
}

// Insert adds a new pothole row and returns its id.
func (r *PotholeRepository) Insert(ctx context.Context, p *model.Pothole) (int64, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO potholes (name, latitude, longitude, image_url, session_id, captured_at, damage_percentage, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`, p.Name, p.Latitude, p.Longitude, p.ImageURL, p.SessionID, p.CapturedAt, p.DamagePercentage, p.CreatedBy)

	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return 0, fmt.Errorf("failed to insert pothole: %w", err)
	}
	return p.ID, nil
}

// GetAll retrieves potholes newest first, filtered by session when set.
func (r *PotholeRepository) GetAll(ctx context.Context, filter *dto.PotholeFilter) ([]model.Pothole, error) {
	query := `
		SELECT id, name, latitude, longitude, image_url, session_id, captured_at, damage_percentage, created_by, created_at
		FROM potholes`
	var args []any

	if filter != nil && filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(" WHERE session_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query potholes: %w", err)
	}
	defer rows.Close()

	var potholes []model.Pothole
	for rows.Next() {
		var p model.Pothole
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.ImageURL, &p.SessionID,
			&p.CapturedAt, &p.DamagePercentage, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pothole: %w", err)
		}
		potholes = append(potholes, p)
	}
	return potholes, rows.Err()
}

// GetTotalCount returns the number of potholes matching the filter, ignoring pagination.
func (r *PotholeRepository) GetTotalCount(ctx context.Context, filter *dto.PotholeFilter) (int, error) {
	query := `SELECT COUNT(*) FROM potholes`
	var args []any
	if filter != nil && filter.SessionID != "" {
		query += " WHERE session_id = $1"
		args = append(args, filter.SessionID)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count potholes: %w", err)
	}
	return count, nil
}

// Close releases the pool when one was provided.
func (r *PotholeRepository) Close() error {
	if r.close != nil {
		r.close()
	}
	return nil
}
