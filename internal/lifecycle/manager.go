// Package lifecycle starts and ends broadcast sessions.
package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/audit"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/embed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/identity"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// Manager owns the Draft -> Live -> Ended transitions of sessions.
type Manager struct {
	store     store.Store
	identity  identity.Provider
	embedHost string
}

// NewManager creates a Manager. embedHost is the hostname passed to
// embedded players that require a parent page.
func NewManager(s store.Store, p identity.Provider, embedHost string) *Manager {
	return &Manager{store: s, identity: p, embedHost: embedHost}
}

// StartSession validates req and inserts one live session owned by the
// connected wallet. Nothing is written when validation fails.
func (m *Manager) StartSession(ctx context.Context, req domain.StartRequest) (*domain.Stream, error) {
	wallet, ok := identity.Require(m.identity)
	if !ok {
		return nil, domain.NotConnectedError()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stream := &domain.Stream{
		WalletAddress: wallet,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Category:      strings.TrimSpace(req.Category),
		ThumbnailURL:  strings.TrimSpace(req.ThumbnailURL),
		IsLive:        true,
		ViewerCount:   0,
	}
	if stream.Category == "" {
		stream.Category = domain.DefaultCategory
	}
	if stream.ThumbnailURL == "" {
		stream.ThumbnailURL = domain.DefaultThumbnailURL
	}

	if req.MediaMode == domain.MediaModeExternal {
		platform := strings.TrimSpace(req.ExternalPlatform)
		if platform == "" {
			platform = domain.PlatformOther
		}
		url := embed.Normalize(req.ExternalURL, platform, m.embedHost)
		stream.IsExternal = true
		stream.ExternalPlatform = &platform
		stream.ExternalURL = &url
	}

	created, err := m.store.InsertStream(ctx, stream)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldWallet, wallet).Msg("failed to start stream")
		return nil, asPersistence("start session", err)
	}

	audit.LogWithDetail(ctx, audit.ActionStartStream, wallet, created.ID, string(created.MediaMode()), "stream started")
	return created, nil
}

// EndSession marks the session ended. Ending an ended session returns the
// row unchanged and writes nothing.
//
// The owner check compares the caller's unverified wallet string with the
// row's wallet_address. It keeps honest clients from ending each other's
// streams and is not an authorization boundary.
func (m *Manager) EndSession(ctx context.Context, id string) (*domain.Stream, error) {
	wallet, ok := identity.Require(m.identity)
	if !ok {
		return nil, domain.NotConnectedError()
	}

	stream, err := m.store.GetStream(ctx, id)
	if err != nil {
		return nil, asPersistence("end session", err)
	}
	if stream.WalletAddress != wallet {
		audit.LogWithDetail(ctx, audit.ActionOwnerMismatch, wallet, id, stream.WalletAddress, "end rejected for non-owner")
		return nil, domain.ErrNotOwner
	}
	if !stream.IsLive {
		return stream, nil
	}

	ended, changed, err := m.store.EndStream(ctx, id)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldStreamID, id).Msg("failed to end stream")
		return nil, asPersistence("end session", err)
	}
	if changed {
		audit.Log(ctx, audit.ActionEndStream, wallet, id, "stream ended")
	}
	return ended, nil
}

// asPersistence keeps typed store errors and sentinels and wraps anything else.
func asPersistence(op string, err error) error {
	if domain.IsPersistence(err) || domain.IsValidation(err) || errors.Is(err, domain.ErrStreamNotFound) {
		return err
	}
	return domain.NewPersistenceError(op, err)
}
