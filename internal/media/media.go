// Package media describes the capture device adapter consumed by the go-live view.
package media

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// Source is the capture device.
type Source string

const (
	SourceCamera Source = "camera"
	SourceScreen Source = "screen"
)

// TrackKind selects a track of a handle.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// ErrNoDevice is the cause reported by Unavailable.
var ErrNoDevice = errors.New("no capture device")

// Handle is a live audio/video capture.
type Handle interface {
	SetTrackEnabled(kind TrackKind, enabled bool)
	Release() error
}

// Adapter acquires capture handles.
// Failures are reported as *domain.MediaAccessError.
type Adapter interface {
	Acquire(ctx context.Context, source Source) (Handle, error)
}

// Unavailable is the Adapter of a process with no capture devices.
type Unavailable struct{}

func (Unavailable) Acquire(ctx context.Context, source Source) (Handle, error) {
	return nil, &domain.MediaAccessError{Source: string(source), Err: ErrNoDevice}
}
