// Package remote implements store.Store against the stream directory HTTP
// and realtime API, for processes that do not own the database.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/feed"
	"github.com/weiawesome/wes-io-live/stream-directory/internal/identity"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/middleware"
	"github.com/weiawesome/wes-io-live/stream-directory/pkg/response"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. http://localhost:8080.
	BaseURL     string
	Timeout     time.Duration
	FeedBuffer  int
	DialTimeout time.Duration
}

// Client talks to a stream directory server. Writes are sent as the
// provider's wallet, or as the row's wallet_address on insert.
type Client struct {
	baseURL  string
	http     *http.Client
	dialer   *websocket.Dialer
	identity identity.Provider
	buffer   int
}

// NewClient creates a Client.
func NewClient(cfg Config, p identity.Provider) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	buffer := cfg.FeedBuffer
	if buffer <= 0 {
		buffer = 256
	}

	return &Client{
		baseURL:  u.String(),
		http:     &http.Client{Timeout: timeout},
		dialer:   &websocket.Dialer{HandshakeTimeout: dialTimeout},
		identity: p,
		buffer:   buffer,
	}, nil
}

func (c *Client) wallet() string {
	if c.identity == nil {
		return ""
	}
	w, _ := c.identity.Identity()
	return w
}

// InsertStream starts a session on the server; the server applies the same
// validation and defaults as the local lifecycle manager.
func (c *Client) InsertStream(ctx context.Context, stream *domain.Stream) (*domain.Stream, error) {
	req := domain.StartRequest{
		Title:        stream.Title,
		Description:  stream.Description,
		Category:     stream.Category,
		ThumbnailURL: stream.ThumbnailURL,
		MediaMode:    stream.MediaMode(),
	}
	if stream.ExternalURL != nil {
		req.ExternalURL = *stream.ExternalURL
	}
	if stream.ExternalPlatform != nil {
		req.ExternalPlatform = *stream.ExternalPlatform
	}

	var out domain.Stream
	if err := c.do(ctx, "insert stream", http.MethodPost, "/api/v1/streams", stream.WalletAddress, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStream implements store.Store.
func (c *Client) GetStream(ctx context.Context, id string) (*domain.Stream, error) {
	var out domain.Stream
	if err := c.do(ctx, "get stream", http.MethodGet, "/api/v1/streams/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndStream implements store.Store. The server does not report whether
// this call ended the stream, so changed is true whenever the result has
// ended.
func (c *Client) EndStream(ctx context.Context, id string) (*domain.Stream, bool, error) {
	var out domain.Stream
	if err := c.do(ctx, "end stream", http.MethodPost, "/api/v1/streams/"+url.PathEscape(id)+"/end", c.wallet(), nil, &out); err != nil {
		return nil, false, err
	}
	return &out, !out.IsLive, nil
}

// InsertChat implements store.Store.
func (c *Client) InsertChat(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	var out domain.ChatMessage
	path := "/api/v1/streams/" + url.PathEscape(msg.StreamID) + "/chat"
	if err := c.do(ctx, "insert chat", http.MethodPost, path, msg.WalletAddress, domain.SendMessageRequest{Message: msg.Message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChat implements store.Store.
func (c *Client) ListChat(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	out := []domain.ChatMessage{}
	path := "/api/v1/streams/" + url.PathEscape(streamID) + "/chat"
	if err := c.do(ctx, "list chat", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListStreams fetches one page of the directory.
func (c *Client) ListStreams(ctx context.Context, query url.Values) (*domain.ListStreamsResponse, error) {
	path := "/api/v1/streams"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out domain.ListStreamsResponse
	if err := c.do(ctx, "list streams", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe implements store.Store over the realtime WebSocket.
func (c *Client) Subscribe(ctx context.Context, spec feed.Spec) (feed.Subscription, error) {
	if err := spec.Validate(); err != nil {
		return nil, domain.NewValidationError("subscription", err.Error())
	}

	u, _ := url.Parse(c.baseURL + "/realtime")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	q := url.Values{}
	q.Set("table", spec.Table)
	if spec.Event != "" {
		q.Set("event", string(spec.Event))
	}
	if !spec.Filter.IsZero() {
		q.Set("filter", spec.Filter.String())
	}
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError("subscribe", resp)
		}
		return nil, domain.NewPersistenceError("subscribe", err)
	}
	return newSubscription(conn, c.buffer), nil
}

// do sends one API request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, op, method, path, wallet string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return domain.NewPersistenceError(op, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return domain.NewPersistenceError(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if wallet != "" {
		req.Header.Set(middleware.WalletHeaderKey, wallet)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.NewPersistenceError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}

	var env response.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.NewPersistenceError(op, fmt.Errorf("decode response: %w", err))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return domain.NewPersistenceError(op, fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

// decodeError maps an error response back to the domain error it came from.
func decodeError(op string, resp *http.Response) error {
	var env response.Envelope
	info := response.ErrorInfo{Message: resp.Status}
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != nil {
		info = *env.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		field := info.Field
		if field == "" {
			field = "request"
		}
		return domain.NewValidationError(field, info.Message)
	case http.StatusUnauthorized:
		return domain.NotConnectedError()
	case http.StatusForbidden:
		return domain.ErrNotOwner
	case http.StatusNotFound:
		return domain.ErrStreamNotFound
	default:
		return domain.NewPersistenceError(op, fmt.Errorf("%s: %s", resp.Status, info.Message))
	}
}
