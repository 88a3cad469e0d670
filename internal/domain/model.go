package domain

import (
	"time"
)

// StreamModel is the GORM model for streams table.
type StreamModel struct {
	ID               string     `gorm:"type:varchar(36);primaryKey"`
	WalletAddress    string     `gorm:"type:varchar(128);index;not null"`
	Title            string     `gorm:"type:varchar(200);not null"`
	Description      string     `gorm:"type:text"`
	Category         string     `gorm:"type:varchar(64);index"`
	ThumbnailURL     string     `gorm:"type:text"`
	IsLive           bool       `gorm:"index;not null;default:false"`
	ViewerCount      int        `gorm:"not null;default:0"`
	StreamKey        string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	IsExternal       bool       `gorm:"not null;default:false"`
	ExternalPlatform *string    `gorm:"type:varchar(32)"`
	ExternalURL      *string    `gorm:"type:text"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index"`
	EndedAt          *time.Time
}

// TableName specifies the table name for StreamModel.
func (StreamModel) TableName() string {
	return TableStreams
}

// ToDomain converts StreamModel to domain Stream.
func (m *StreamModel) ToDomain() *Stream {
	return &Stream{
		ID:               m.ID,
		WalletAddress:    m.WalletAddress,
		Title:            m.Title,
		Description:      m.Description,
		Category:         m.Category,
		ThumbnailURL:     m.ThumbnailURL,
		IsLive:           m.IsLive,
		ViewerCount:      m.ViewerCount,
		StreamKey:        m.StreamKey,
		IsExternal:       m.IsExternal,
		ExternalPlatform: m.ExternalPlatform,
		ExternalURL:      m.ExternalURL,
		CreatedAt:        m.CreatedAt.UTC(),
		EndedAt:          m.EndedAt,
	}
}

// StreamToModel converts domain Stream to StreamModel.
func StreamToModel(s *Stream) *StreamModel {
	return &StreamModel{
		ID:               s.ID,
		WalletAddress:    s.WalletAddress,
		Title:            s.Title,
		Description:      s.Description,
		Category:         s.Category,
		ThumbnailURL:     s.ThumbnailURL,
		IsLive:           s.IsLive,
		ViewerCount:      s.ViewerCount,
		StreamKey:        s.StreamKey,
		IsExternal:       s.IsExternal,
		ExternalPlatform: s.ExternalPlatform,
		ExternalURL:      s.ExternalURL,
		CreatedAt:        s.CreatedAt,
		EndedAt:          s.EndedAt,
	}
}

// ChatMessageModel is the GORM model for stream_chat table.
type ChatMessageModel struct {
	ID            string    `gorm:"type:varchar(26);primaryKey"`
	StreamID      string    `gorm:"type:varchar(36);index:idx_stream_chat_stream_created,priority:1;not null"`
	WalletAddress string    `gorm:"type:varchar(128);not null"`
	Message       string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"index:idx_stream_chat_stream_created,priority:2"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return TableStreamChat
}

// ToDomain converts ChatMessageModel to domain ChatMessage.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:            m.ID,
		StreamID:      m.StreamID,
		WalletAddress: m.WalletAddress,
		Message:       m.Message,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// ChatMessageToModel converts domain ChatMessage to ChatMessageModel.
func ChatMessageToModel(msg *ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:            msg.ID,
		StreamID:      msg.StreamID,
		WalletAddress: msg.WalletAddress,
		Message:       msg.Message,
		CreatedAt:     msg.CreatedAt,
	}
}
