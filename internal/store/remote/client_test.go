package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/chatsync"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/handler"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/identity"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/lifecycle"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/testutil"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/thumbnail"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/middleware"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/storage"
)

const (
	owner  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	viewer = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

var _ store.Store = (*Client)(nil)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	broker := testutil.NewBroker(t)
	backend := store.NewBackend(
		repository.NewGormStreamRepository(db),
		repository.NewGormChatRepository(db),
		broker,
		broker,
	)
	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), PublicURL: "/thumbnails"})
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	r := gin.New()
	r.Use(middleware.Wallet())
	handler.NewHandler(backend, thumbnail.NewProcessor(local, backend, config.ThumbnailConfig{Width: 80, Height: 45, Quality: 80}),
		handler.Options{EmbedHost: "example.com", ChatMaxLength: 500}).RegisterRoutes(r)
	handler.NewRealtimeHandler(backend, config.WebSocketConfig{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
	}).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, wallet string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: srv.URL}, identity.NewStatic(wallet))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func waitFor(t *testing.T, changed <-chan struct{}, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for condition")
		}
	}
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	ownerID := identity.NewStatic(owner)
	ownerClient := newTestClient(t, srv, owner)
	viewerClient := newTestClient(t, srv, viewer)

	manager := lifecycle.NewManager(ownerClient, ownerID, "example.com")
	stream, err := manager.StartSession(ctx, domain.StartRequest{
		Title:            "remote live",
		MediaMode:        domain.MediaModeExternal,
		ExternalPlatform: "Twitch",
		ExternalURL:      "https://twitch.tv/someChannel",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !stream.IsLive || stream.StreamKey == "" || stream.WalletAddress != owner {
		t.Fatalf("unexpected stream %+v", stream)
	}
	want := "https://player.twitch.tv/?channel=someChannel&parent=example.com&muted=true"
	if stream.ExternalURL == nil || *stream.ExternalURL != want {
		t.Fatalf("expected %s, got %v", want, stream.ExternalURL)
	}

	viewerSync := chatsync.NewSynchronizer(viewerClient, identity.NewStatic(viewer), 0)
	transcript, err := chatsync.OpenTranscript(ctx, viewerSync, stream.ID)
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer transcript.Close()

	view, err := chatsync.OpenSessionView(ctx, viewerSync, stream.ID)
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer view.Close()

	if _, err := viewerSync.SendMessage(ctx, stream.ID, "gm"); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, transcript.Changed(), func() bool { return len(transcript.Messages()) == 1 })
	if got := transcript.Messages()[0]; got.Message != "gm" || got.WalletAddress != viewer {
		t.Fatalf("unexpected message %+v", got)
	}

	ended, err := manager.EndSession(ctx, stream.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.IsLive {
		t.Fatalf("expected ended stream")
	}
	waitFor(t, view.Changed(), func() bool { return !view.Stream().IsLive })

	if _, err := manager.EndSession(ctx, stream.ID); err != nil {
		t.Fatalf("second end: %v", err)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	ownerClient := newTestClient(t, srv, owner)

	if _, err := ownerClient.GetStream(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrStreamNotFound) {
		t.Fatalf("expected ErrStreamNotFound, got %v", err)
	}

	_, err := ownerClient.InsertStream(ctx, &domain.Stream{WalletAddress: owner, Title: " "})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title ValidationError, got %v", err)
	}

	if _, err := ownerClient.InsertStream(ctx, &domain.Stream{Title: "anon"}); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	stream, err := ownerClient.InsertStream(ctx, &domain.Stream{WalletAddress: owner, Title: "mine"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	other := newTestClient(t, srv, viewer)
	if _, _, err := other.EndStream(ctx, stream.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	if _, err := ownerClient.Subscribe(ctx, feed.Spec{Table: "users"}); !domain.IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown table, got %v", err)
	}
}

func TestClientListStreams(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	c := newTestClient(t, srv, owner)

	for _, title := range []string{"one", "two"} {
		if _, err := c.InsertStream(ctx, &domain.Stream{WalletAddress: owner, Title: title}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := c.ListStreams(ctx, url.Values{"live": {"true"}, "q": {"two"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Streams[0].Title != "two" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestSubscriptionCloseEndsChanges(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	c := newTestClient(t, srv, owner)

	sub, err := c.Subscribe(ctx, feed.Spec{Table: domain.TableStreams, Event: domain.ChangeAll})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	inserted, err := c.InsertStream(ctx, &domain.Stream{WalletAddress: owner, Title: "watched"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case change := <-sub.Changes():
		got, err := change.Stream()
		if err != nil || got.ID != inserted.ID || change.Type != domain.ChangeInsert {
			t.Fatalf("unexpected change %+v (%v)", change, err)
		}
		if got.StreamKey != "" {
			t.Fatalf("feed must not carry stream keys")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for insert change")
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-sub.Changes():
		if ok {
			t.Fatalf("expected changes channel to close")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("expected nil Err after Close, got %v", err)
	}
}
