package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/audit"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/chatsync"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/identity"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/lifecycle"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/thumbnail"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/middleware"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/response"
)

// Options holds the request limits of the HTTP API.
type Options struct {
	EmbedHost          string
	ChatMaxLength      int
	MaxThumbnailUpload int64
}

// Handler handles HTTP requests for the stream directory.
type Handler struct {
	backend    *store.Backend
	thumbnails *thumbnail.Processor
	opts       Options
}

// NewHandler creates a new HTTP handler.
func NewHandler(backend *store.Backend, thumbnails *thumbnail.Processor, opts Options) *Handler {
	return &Handler{
		backend:    backend,
		thumbnails: thumbnails,
		opts:       opts,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/categories", h.ListCategories)

		streams := api.Group("/streams")
		{
			// Public routes
			streams.GET("", h.ListStreams)
			streams.GET("/:id", h.GetStream)
			streams.GET("/:id/chat", h.ListChat)

			// Wallet routes
			streams.POST("", middleware.RequireWallet(), h.StartStream)
			streams.POST("/:id/end", middleware.RequireWallet(), h.EndStream)
			streams.PUT("/:id/viewers", middleware.RequireWallet(), h.UpdateViewers)
			streams.POST("/:id/thumbnail", middleware.RequireWallet(), h.UploadThumbnail)
			streams.POST("/:id/chat", middleware.RequireWallet(), h.SendMessage)
		}
	}
}

// manager returns a lifecycle manager acting as the request's wallet.
func (h *Handler) manager(c *gin.Context) *lifecycle.Manager {
	return lifecycle.NewManager(h.backend, identity.NewStatic(middleware.GetWallet(c)), h.opts.EmbedHost)
}

func (h *Handler) synchronizer(c *gin.Context) *chatsync.Synchronizer {
	return chatsync.NewSynchronizer(h.backend, identity.NewStatic(middleware.GetWallet(c)), h.opts.ChatMaxLength)
}

// ListCategories returns the categories offered when going live.
func (h *Handler) ListCategories(c *gin.Context) {
	response.Success(c, domain.Categories)
}

// ListStreams lists the directory with optional filters.
func (h *Handler) ListStreams(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.ListStreamsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind list streams request")
		response.BadRequest(c, err.Error())
		return
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	streams, total, err := h.backend.ListStreams(ctx, repository.StreamFilter{
		Live:     req.Live,
		Category: req.Category,
		Query:    req.Query,
		Owner:    req.Owner,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.writeError(c, err, "failed to list streams")
		return
	}

	response.Success(c, domain.ListStreamsResponse{
		Streams:    streams,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
	})
}

// GetStream retrieves a stream by ID.
func (h *Handler) GetStream(c *gin.Context) {
	stream, err := h.backend.GetStream(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to get stream")
		return
	}
	response.Success(c, stream)
}

// StartStream starts a session owned by the caller's wallet. The response
// is the only place the stream key is returned.
func (h *Handler) StartStream(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind start stream request")
		response.BadRequest(c, err.Error())
		return
	}

	stream, err := h.manager(c).StartSession(ctx, req)
	if err != nil {
		h.writeError(c, err, "failed to start stream")
		return
	}
	response.Created(c, stream)
}

// EndStream ends a session. Ending an ended session succeeds.
func (h *Handler) EndStream(c *gin.Context) {
	stream, err := h.manager(c).EndSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to end stream")
		return
	}
	response.Success(c, stream)
}

// UpdateViewers sets the viewer count reported by an external counter.
func (h *Handler) UpdateViewers(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UpdateViewersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind update viewers request")
		response.BadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	stream, err := h.backend.UpdateViewerCount(ctx, id, req.ViewerCount)
	if err != nil {
		h.writeError(c, err, "failed to update viewer count")
		return
	}

	audit.Log(ctx, audit.ActionUpdateViewers, middleware.GetWallet(c), id, "viewer count updated")
	response.Success(c, stream)
}

// UploadThumbnail accepts a multipart "thumbnail" image for the stream.
func (h *Handler) UploadThumbnail(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	if h.opts.MaxThumbnailUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxThumbnailUpload)
	}

	fh, err := c.FormFile("thumbnail")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(c, "thumbnail is too large")
			return
		}
		l.Warn().Err(err).Msg("failed to read thumbnail upload")
		response.ValidationFailed(c, "thumbnail", "multipart field thumbnail is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		l.Error().Err(err).Msg("failed to open thumbnail upload")
		response.InternalError(c, "failed to read thumbnail")
		return
	}
	defer f.Close()

	stream, err := h.thumbnails.Upload(ctx, middleware.GetWallet(c), c.Param("id"), f)
	if err != nil {
		h.writeError(c, err, "failed to upload thumbnail")
		return
	}
	response.Success(c, stream)
}

// ListChat returns the stream's transcript, oldest first.
func (h *Handler) ListChat(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.backend.GetStream(ctx, id); err != nil {
		h.writeError(c, err, "failed to list chat")
		return
	}

	messages, err := h.synchronizer(c).LoadTranscript(ctx, id)
	if err != nil {
		h.writeError(c, err, "failed to list chat")
		return
	}
	response.Success(c, messages)
}

// SendMessage appends a chat message authored by the caller's wallet.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind send message request")
		response.BadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	if _, err := h.backend.GetStream(ctx, id); err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}

	msg, err := h.synchronizer(c).SendMessage(ctx, id, req.Message)
	if err != nil {
		h.writeError(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// writeError maps domain errors to responses. Unexpected errors are logged
// and reported as msg.
func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		response.Unauthorized(c, err.Error())
	case errors.As(err, &ve):
		response.ValidationFailed(c, ve.Field, ve.Reason)
	case errors.Is(err, domain.ErrStreamNotFound):
		response.NotFound(c, "stream not found")
	case errors.Is(err, domain.ErrNotOwner):
		response.Forbidden(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldStreamID, c.Param("id")).Msg(msg)
		response.InternalError(c, msg)
	}
}
