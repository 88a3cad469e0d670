// Package thumbnail resizes uploaded stream thumbnails and stores them.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/disintegration/imaging"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/audit"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/idgen"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/storage"
)

// Streams is the part of the store the processor needs.
type Streams interface {
	GetStream(ctx context.Context, id string) (*domain.Stream, error)
	UpdateThumbnail(ctx context.Context, id, url string) (*domain.Stream, error)
}

// Processor crops an uploaded image to the thumbnail size, stores it as JPEG
// and points the stream row at it.
type Processor struct {
	storage storage.Storage
	streams Streams
	ids     *idgen.ULIDGenerator
	width   int
	height  int
	quality int
}

// NewProcessor creates a Processor.
func NewProcessor(st storage.Storage, streams Streams, cfg config.ThumbnailConfig) *Processor {
	return &Processor{
		storage: st,
		streams: streams,
		ids:     idgen.NewULIDGenerator(),
		width:   cfg.Width,
		height:  cfg.Height,
		quality: cfg.Quality,
	}
}

// Key returns the object key of one thumbnail upload.
func Key(streamID, uploadID string) string {
	return fmt.Sprintf("streams/%s/%s.jpg", streamID, uploadID)
}

// Upload replaces the thumbnail of streamID. Only the stream's owner may
// upload; the wallet is the caller's unverified identity.
func (p *Processor) Upload(ctx context.Context, wallet, streamID string, r io.Reader) (*domain.Stream, error) {
	stream, err := p.streams.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}
	if stream.WalletAddress != wallet {
		audit.LogWithDetail(ctx, audit.ActionOwnerMismatch, wallet, streamID, stream.WalletAddress, "thumbnail rejected for non-owner")
		return nil, domain.ErrNotOwner
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, domain.NewValidationError("thumbnail", "unsupported or corrupt image")
	}

	// Centre crop to the directory card's aspect ratio.
	resized := imaging.Fill(img, p.width, p.height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	uploadID, err := p.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate upload id: %w", err)
	}
	key := Key(streamID, uploadID)
	if err := p.storage.Write(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return nil, domain.NewPersistenceError("store thumbnail", err)
	}

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldStreamID, streamID).Str("key", key).Msg("uploaded thumbnail")

	updated, err := p.streams.UpdateThumbnail(ctx, streamID, p.storage.PublicURL(key))
	if err != nil {
		if delErr := p.storage.Delete(ctx, key); delErr != nil {
			l.Warn().Err(delErr).Str("key", key).Msg("failed to delete orphaned thumbnail")
		}
		return nil, err
	}

	audit.LogWithDetail(ctx, audit.ActionUpdateThumbnail, wallet, streamID, key, "thumbnail updated")
	return updated, nil
}
