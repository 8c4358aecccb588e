package repository

import (
	"context"

	"potholeserver/internal/dto"
	"potholeserver/internal/model"
)

// PotholeRepository defines the interface for pothole record operations.
type PotholeRepository interface {
	// Create operations
	Insert(ctx context.Context, p *model.Pothole) (int64, error)

	// Read operations
	GetAll(ctx context.Context, filter *dto.PotholeFilter) ([]model.Pothole, error)
	GetTotalCount(ctx context.Context, filter *dto.PotholeFilter) (int, error)

	Close() error
}

// ObjectStore keeps image blobs and hands back a URL for each.
type ObjectStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
