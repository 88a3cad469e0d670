package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// GormChatRepository implements ChatRepository using GORM.
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based chat repository.
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// Create appends a message. ID and CreatedAt must be set by the caller.
func (r *GormChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	if err := r.db.WithContext(ctx).Create(domain.ChatMessageToModel(msg)).Error; err != nil {
		l.Error().Err(err).Str(log.FieldStreamID, msg.StreamID).Msg("failed to create chat message in db")
		return err
	}
	return nil
}

// ListByStream returns the full transcript of a stream.
func (r *GormChatRepository) ListByStream(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	var models []domain.ChatMessageModel
	result := r.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, streamID).Msg("failed to list chat messages from db")
		return nil, result.Error
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Close is a no-op; the *gorm.DB is owned by the caller.
func (r *GormChatRepository) Close() error {
	return nil
}
