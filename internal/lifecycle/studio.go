package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/media"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// State is the session state seen by a Studio.
type State string

const (
	StateDraft State = "draft"
	StateLive  State = "live"
	StateEnded State = "ended"
)

var (
	ErrAlreadyLive = errors.New("session is already live")
	ErrNotLive     = errors.New("session is not live")
	ErrEnded       = errors.New("session has ended")
)

// Studio is the go-live view of one broadcaster. It exclusively owns the
// capture handle and drives one session through Draft -> Live -> Ended.
type Studio struct {
	manager *Manager
	adapter media.Adapter

	mu     sync.Mutex
	state  State
	stream *domain.Stream
	handle media.Handle
	source media.Source
	video  bool
	audio  bool
}

// NewStudio creates a Studio in the Draft state.
func NewStudio(manager *Manager, adapter media.Adapter) *Studio {
	return &Studio{
		manager: manager,
		adapter: adapter,
		state:   StateDraft,
		video:   true,
		audio:   true,
	}
}

// State returns the current state.
func (s *Studio) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stream returns the live or ended session, or nil in Draft.
func (s *Studio) Stream() *domain.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Preview acquires a capture handle for source, releasing the previous one.
// A *domain.MediaAccessError leaves the studio without a preview.
func (s *Studio) Preview(ctx context.Context, source media.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked(ctx)

	handle, err := s.adapter.Acquire(ctx, source)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("source", string(source)).Msg("media preview unavailable")
		return err
	}
	handle.SetTrackEnabled(media.TrackVideo, s.video)
	handle.SetTrackEnabled(media.TrackAudio, s.audio)
	s.handle = handle
	s.source = source
	return nil
}

// ToggleVideo flips the video track and returns the new setting.
func (s *Studio) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = !s.video
	if s.handle != nil {
		s.handle.SetTrackEnabled(media.TrackVideo, s.video)
	}
	return s.video
}

// ToggleAudio flips the audio track and returns the new setting.
func (s *Studio) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = !s.audio
	if s.handle != nil {
		s.handle.SetTrackEnabled(media.TrackAudio, s.audio)
	}
	return s.audio
}

// GoLive starts the session. A missing preview does not block going live.
func (s *Studio) GoLive(ctx context.Context, req domain.StartRequest) (*domain.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateLive:
		return nil, ErrAlreadyLive
	case StateEnded:
		return nil, ErrEnded
	}

	stream, err := s.manager.StartSession(ctx, req)
	if err != nil {
		return nil, err
	}
	s.stream = stream
	s.state = StateLive
	return stream, nil
}

// End ends the live session, then releases the capture handle.
func (s *Studio) End(ctx context.Context) (*domain.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLive {
		return nil, ErrNotLive
	}

	stream, err := s.manager.EndSession(ctx, s.stream.ID)
	if err != nil {
		return nil, err
	}
	s.stream = stream
	s.state = StateEnded
	s.releaseLocked(ctx)
	return stream, nil
}

// Close releases the capture handle. The session is left as it is.
func (s *Studio) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(ctx)
}

func (s *Studio) releaseLocked(ctx context.Context) {
	if s.handle == nil {
		return
	}
	if err := s.handle.Release(); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("source", string(s.source)).Msg("failed to release media")
	}
	s.handle = nil
	s.source = ""
}
