package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MediaMode is how a session's video is produced.
type MediaMode string

const (
	MediaModeLocal    MediaMode = "local"
	MediaModeExternal MediaMode = "external"
)

// External platform tags.
const (
	PlatformYouTube = "youtube"
	PlatformTwitch  = "twitch"
	PlatformX       = "x"
	PlatformOther   = "other"
)

// DefaultThumbnailURL is used when a session is started without a thumbnail.
const DefaultThumbnailURL = "https://images.unsplash.com/photo-1614332287897-cdc485fa562d?w=800&h=450&fit=crop"

// Stream is one broadcast session.
type Stream struct {
	ID               string     `json:"id"`
	WalletAddress    string     `json:"wallet_address"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	ThumbnailURL     string     `json:"thumbnail_url"`
	IsLive           bool       `json:"is_live"`
	ViewerCount      int        `json:"viewer_count"`
	StreamKey        string     `json:"stream_key,omitempty"`
	IsExternal       bool       `json:"is_external"`
	ExternalPlatform *string    `json:"external_platform"`
	ExternalURL      *string    `json:"external_url"`
	CreatedAt        time.Time  `json:"created_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// MediaMode reports whether the stream is captured locally or embedded.
func (s *Stream) MediaMode() MediaMode {
	if s.IsExternal {
		return MediaModeExternal
	}
	return MediaModeLocal
}

// Public returns a copy without the stream key.
func (s Stream) Public() Stream {
	s.StreamKey = ""
	return s
}

// Length limits for the go-live form, in characters.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// StartRequest carries the go-live form.
type StartRequest struct {
	Title            string    `json:"title" binding:"max=200"`
	Description      string    `json:"description" binding:"max=2000"`
	Category         string    `json:"category"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	MediaMode        MediaMode `json:"media_mode"`
	ExternalURL      string    `json:"external_url"`
	ExternalPlatform string    `json:"external_platform"`
}

// Validate checks the required fields for starting a session.
func (r *StartRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Title)) > MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("must be at most %d characters", MaxTitleLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Description)) > MaxDescriptionLength {
		return NewValidationError("description", fmt.Sprintf("must be at most %d characters", MaxDescriptionLength))
	}
	switch r.MediaMode {
	case "", MediaModeLocal:
	case MediaModeExternal:
		if strings.TrimSpace(r.ExternalURL) == "" {
			return NewValidationError("external_url", "required for external streams")
		}
	default:
		return NewValidationError("media_mode", "must be local or external")
	}
	return nil
}

// ListStreamsRequest represents a directory list request.
type ListStreamsRequest struct {
	Live     *bool  `form:"live"`
	Category string `form:"category"`
	Query    string `form:"q"`
	Owner    string `form:"wallet_address"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ListStreamsResponse represents a paginated list response.
type ListStreamsResponse struct {
	Streams    []Stream `json:"streams"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// UpdateViewersRequest sets the externally maintained viewer count.
type UpdateViewersRequest struct {
	ViewerCount int `json:"viewer_count"`
}
