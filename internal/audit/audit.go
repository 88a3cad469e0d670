package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/stream-directory/pkg/log"
)

// Audit actions for stream-directory.
const (
	ActionStartStream     = "stream.start"
	ActionEndStream       = "stream.end"
	ActionSendChat        = "chat.send"
	ActionUpdateViewers   = "stream.viewers"
	ActionUpdateThumbnail = "stream.thumbnail"
	ActionOwnerMismatch   = "stream.owner_mismatch"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
// The wallet address is the caller's unverified identity.
func Log(ctx context.Context, action, wallet, streamID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldWallet, wallet).
		Str(log.FieldStreamID, streamID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, wallet, streamID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldWallet, wallet).
		Str(log.FieldStreamID, streamID).
		Str(FieldDetail, detail).
		Msg(msg)
}
