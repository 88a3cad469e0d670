package domain

import (
	"strings"
	"time"
)

// ChatMessage is one immutable transcript entry.
type ChatMessage struct {
	ID            string    `json:"id"`
	StreamID      string    `json:"stream_id"`
	WalletAddress string    `json:"wallet_address"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Before reports whether m sorts before o in a transcript.
func (m *ChatMessage) Before(o *ChatMessage) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

// SendMessageRequest represents a chat send request.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// NormalizeMessage trims text and rejects empty messages.
func NormalizeMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", NewValidationError("message", "must not be empty")
	}
	return trimmed, nil
}
