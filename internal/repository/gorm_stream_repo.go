package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GormStreamRepository implements StreamRepository using GORM.
type GormStreamRepository struct {
	db *gorm.DB
}

// NewGormStreamRepository creates a new GORM-based stream repository.
func NewGormStreamRepository(db *gorm.DB) *GormStreamRepository {
	return &GormStreamRepository{db: db}
}

// Create inserts a stream row. ID, StreamKey and CreatedAt must be set by the caller.
func (r *GormStreamRepository) Create(ctx context.Context, stream *domain.Stream) error {
	l := log.Ctx(ctx)

	model := domain.StreamToModel(stream)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create stream in db")
		return err
	}

	stream.CreatedAt = model.CreatedAt.UTC()
	l.Debug().Str(log.FieldStreamID, stream.ID).Msg("stream created in db")
	return nil
}

// GetByID retrieves a stream by ID.
func (r *GormStreamRepository) GetByID(ctx context.Context, id string) (*domain.Stream, error) {
	l := log.Ctx(ctx)

	var model domain.StreamModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrStreamNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to get stream by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// List retrieves streams with filtering and pagination, newest first.
func (r *GormStreamRepository) List(ctx context.Context, filter StreamFilter) ([]domain.Stream, int, error) {
	l := log.Ctx(ctx)

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	query := r.db.WithContext(ctx).Model(&domain.StreamModel{})
	if filter.Live != nil {
		query = query.Where("is_live = ?", *filter.Live)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Owner != "" {
		query = query.Where("wallet_address = ?", filter.Owner)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		l.Error().Err(err).Msg("failed to count streams")
		return nil, 0, err
	}

	var models []domain.StreamModel
	if err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&models).Error; err != nil {
		l.Error().Err(err).Msg("failed to list streams from db")
		return nil, 0, err
	}

	streams := make([]domain.Stream, len(models))
	for i, model := range models {
		streams[i] = *model.ToDomain()
	}

	return streams, int(total), nil
}

// End marks a live stream as ended. A stream that already ended is left untouched.
func (r *GormStreamRepository) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.StreamModel{}).
		Where("id = ? AND is_live = ?", id, true).
		Updates(map[string]interface{}{
			"is_live":  false,
			"ended_at": endedAt.UTC(),
		})
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to end stream in db")
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		// Either missing or already ended.
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	l.Debug().Str(log.FieldStreamID, id).Msg("stream ended in db")
	return true, nil
}

// UpdateViewerCount sets the externally maintained viewer count.
func (r *GormStreamRepository) UpdateViewerCount(ctx context.Context, id string, count int) error {
	return r.updateColumn(ctx, id, "viewer_count", count)
}

// UpdateThumbnail sets the thumbnail URL.
func (r *GormStreamRepository) UpdateThumbnail(ctx context.Context, id, url string) error {
	return r.updateColumn(ctx, id, "thumbnail_url", url)
}

func (r *GormStreamRepository) updateColumn(ctx context.Context, id, column string, value interface{}) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Model(&domain.StreamModel{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Str("column", column).Msg("failed to update stream in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
