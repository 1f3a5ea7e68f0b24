// Package storage defines the watermark persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"tg_monitor/internal/model"
)

// Storage is the per-source watermark store.
type Storage interface {
	// GetLast returns the watermark of a source, or nil if none is stored.
	GetLast(ctx context.Context, sourceURL string) (*model.Watermark, error)
	// SaveLast upserts the watermark of a source and stamps updated_at.
	SaveLast(ctx context.Context, src model.Source, messageTime time.Time, messageID int64) error
	GetAll(ctx context.Context) (map[string]model.WatermarkSnapshot, error)
	// Fallback returns the cold-start floor for sources without a watermark.
	Fallback(minutesAgo int) time.Time
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	Stats(ctx context.Context) (model.Stats, error)
	Ping(ctx context.Context) error

	Close() error
}

// DefaultFallbackMinutes bounds the catch-up window on cold start.
const DefaultFallbackMinutes = 10

// DefaultRetentionDays is how long an untouched watermark is kept.
const DefaultRetentionDays = 30
