package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/config"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/repository"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/store"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/testutil"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/thumbnail"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/middleware"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/response"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/storage"
)

const (
	owner  = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	viewer = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newTestRouter(t *testing.T) *gin.Engine {
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
	thumbs := thumbnail.NewProcessor(local, backend, config.ThumbnailConfig{Width: 80, Height: 45, Quality: 80})

	r := gin.New()
	r.Use(middleware.Wallet())
	NewHandler(backend, thumbs, Options{EmbedHost: "localhost", ChatMaxLength: 500, MaxThumbnailUpload: 1 << 20}).RegisterRoutes(r)
	NewRealtimeHandler(backend, config.WebSocketConfig{
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		WriteWait:    10 * time.Second,
	}).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, wallet string, body interface{}) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if wallet != "" {
		req.Header.Set(middleware.WalletHeaderKey, wallet)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w, env
}

func decodeData(t *testing.T, env response.Envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func startStream(t *testing.T, r http.Handler, title string) domain.Stream {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/v1/streams", owner, domain.StartRequest{Title: title, Category: "Gaming"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var stream domain.Stream
	decodeData(t, env, &stream)
	return stream
}

func TestStartStream(t *testing.T) {
	r := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/streams", "", domain.StartRequest{Title: "t"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without wallet, got %d", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/streams", owner, domain.StartRequest{Title: "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty title, got %d", w.Code)
	}
	if env.Error == nil || env.Error.Code != response.CodeValidation || env.Error.Field != "title" {
		t.Fatalf("expected title validation error, got %+v", env.Error)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/streams", owner, domain.StartRequest{Title: strings.Repeat("a", domain.MaxTitleLength+1)})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for long title, got %d", w.Code)
	}

	stream := startStream(t, r, "hello")
	if !stream.IsLive || stream.ViewerCount != 0 || stream.StreamKey == "" {
		t.Fatalf("unexpected stream %+v", stream)
	}

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/streams/"+stream.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var fetched domain.Stream
	decodeData(t, env, &fetched)
	if fetched.ID != stream.ID || fetched.StreamKey != "" {
		t.Fatalf("expected public row, got %+v", fetched)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	r := newTestRouter(t)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/streams/00000000-0000-0000-0000-000000000000", "", nil)
	if w.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != response.CodeNotFound {
		t.Fatalf("expected 404, got %d %+v", w.Code, env.Error)
	}
}

func TestEndStream(t *testing.T) {
	r := newTestRouter(t)
	stream := startStream(t, r, "to end")
	path := "/api/v1/streams/" + stream.ID + "/end"

	w, _ := doJSON(t, r, http.MethodPost, path, viewer, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", w.Code)
	}

	for i := 0; i < 2; i++ {
		w, env := doJSON(t, r, http.MethodPost, path, owner, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("end %d: expected 200, got %d", i, w.Code)
		}
		var ended domain.Stream
		decodeData(t, env, &ended)
		if ended.IsLive {
			t.Fatalf("end %d: expected ended stream", i)
		}
	}
}

func TestListStreams(t *testing.T) {
	r := newTestRouter(t)
	live := startStream(t, r, "live one")
	ended := startStream(t, r, "ended one")
	if w, _ := doJSON(t, r, http.MethodPost, "/api/v1/streams/"+ended.ID+"/end", owner, nil); w.Code != http.StatusOK {
		t.Fatalf("end: %d", w.Code)
	}

	w, env := doJSON(t, r, http.MethodGet, "/api/v1/streams?live=true", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list domain.ListStreamsResponse
	decodeData(t, env, &list)
	if list.Total != 1 || len(list.Streams) != 1 || list.Streams[0].ID != live.ID {
		t.Fatalf("expected only the live stream, got %+v", list)
	}
	if list.Streams[0].StreamKey != "" {
		t.Fatalf("directory must not expose stream keys")
	}

	_, env = doJSON(t, r, http.MethodGet, "/api/v1/streams", "", nil)
	decodeData(t, env, &list)
	if list.Total != 2 || list.Page != 1 || list.PageSize != 20 || list.TotalPages != 1 {
		t.Fatalf("unexpected page %+v", list)
	}
}

func TestChat(t *testing.T) {
	r := newTestRouter(t)
	stream := startStream(t, r, "chatty")
	path := "/api/v1/streams/" + stream.ID + "/chat"

	w, env := doJSON(t, r, http.MethodPost, path, viewer, domain.SendMessageRequest{Message: "  \t "})
	if w.Code != http.StatusBadRequest || env.Error == nil || env.Error.Field != "message" {
		t.Fatalf("expected message validation error, got %d %+v", w.Code, env.Error)
	}

	w, env = doJSON(t, r, http.MethodPost, path, viewer, domain.SendMessageRequest{Message: " gm "})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var sent domain.ChatMessage
	decodeData(t, env, &sent)
	if sent.Message != "gm" || sent.WalletAddress != viewer || sent.StreamID != stream.ID {
		t.Fatalf("unexpected message %+v", sent)
	}

	w, env = doJSON(t, r, http.MethodGet, path, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var messages []domain.ChatMessage
	decodeData(t, env, &messages)
	if len(messages) != 1 || messages[0].ID != sent.ID {
		t.Fatalf("expected one message, got %+v", messages)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/streams/00000000-0000-0000-0000-000000000000/chat", viewer, domain.SendMessageRequest{Message: "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stream, got %d", w.Code)
	}
}

func TestUpdateViewers(t *testing.T) {
	r := newTestRouter(t)
	stream := startStream(t, r, "popular")
	path := "/api/v1/streams/" + stream.ID + "/viewers"

	w, _ := doJSON(t, r, http.MethodPut, path, owner, domain.UpdateViewersRequest{ViewerCount: -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative count, got %d", w.Code)
	}

	w, env := doJSON(t, r, http.MethodPut, path, owner, domain.UpdateViewersRequest{ViewerCount: 12})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var updated domain.Stream
	decodeData(t, env, &updated)
	if updated.ViewerCount != 12 {
		t.Fatalf("expected 12 viewers, got %d", updated.ViewerCount)
	}
}

func TestUploadThumbnail(t *testing.T) {
	r := newTestRouter(t)
	stream := startStream(t, r, "pretty")

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 64, 64))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("thumbnail", "thumb.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(img.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/streams/"+stream.ID+"/thumbnail", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.WalletHeaderKey, owner)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var env response.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var updated domain.Stream
	decodeData(t, env, &updated)
	if updated.ThumbnailURL == domain.DefaultThumbnailURL || updated.ThumbnailURL == "" {
		t.Fatalf("expected uploaded thumbnail url, got %q", updated.ThumbnailURL)
	}
}

func TestCategories(t *testing.T) {
	r := newTestRouter(t)
	w, env := doJSON(t, r, http.MethodGet, "/api/v1/categories", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var categories []string
	decodeData(t, env, &categories)
	if len(categories) != len(domain.Categories) {
		t.Fatalf("expected %d categories, got %d", len(domain.Categories), len(categories))
	}
}

func TestRealtimeRejectsBadSpec(t *testing.T) {
	r := newTestRouter(t)
	w, env := doJSON(t, r, http.MethodGet, "/realtime?table=users", "", nil)
	if w.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != response.CodeValidation {
		t.Fatalf("expected 400, got %d %+v", w.Code, env.Error)
	}
}
