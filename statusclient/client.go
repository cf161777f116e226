// Package statusclient talks to the assistant's local status server.
package statusclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"go.aimuz.me/orb/internal/types"
)

// DefaultURL is where the assistant serves its state.
const DefaultURL = "http://127.0.0.1:9877"

// maxStateBody caps how much of a state response is read.
const maxStateBody = 64

// RequestIDHeader carries the id of an ingested command.
const RequestIDHeader = "X-Request-Id"

var tracer = otel.Tracer("go.aimuz.me/orb/statusclient")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// Client polls state from, and sends commands to, the status server.
type Client struct {
	baseURL  string
	http     *http.Client
	dialer   *websocket.Dialer
	clientID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for baseURL. An empty baseURL means DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		dialer:   websocket.DefaultDialer,
		clientID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch returns the trimmed state token currently served.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "statusclient.Fetch")
	defer span.End()

	token, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("overlay.state", token))
	return token, nil
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get state: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStateBody))
	if err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Send posts command text to the server's ingestion endpoint.
func (c *Client) Send(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "statusclient.Send",
		trace.WithAttributes(attribute.Int("command.length", len(text))))
	defer span.End()

	id := uuid.NewString()
	span.SetAttributes(attribute.String("command.id", id))

	if err := c.do(ctx, http.MethodPost, text, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// SetState asks the server to serve state. Used by the backend side and
// the command line.
func (c *Client) SetState(ctx context.Context, state types.OverlayState) error {
	ctx, span := tracer.Start(ctx, "statusclient.SetState",
		trace.WithAttributes(attribute.String("overlay.state", state.String())))
	defer span.End()

	if err := c.do(ctx, http.MethodPut, state.String(), ""); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, body, id string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Client-Id", c.clientID)
	if id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Push feed
// ─────────────────────────────────────────────────────────────────────────────

// Subscribe delivers every state the server pushes over its websocket feed
// to fn, reconnecting after retry when the connection drops. It blocks until
// ctx is cancelled.
func (c *Client) Subscribe(ctx context.Context, retry time.Duration, fn func(state string)) error {
	if retry <= 0 {
		retry = time.Second
	}
	for {
		err := c.subscribeOnce(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("state feed disconnected", "error", err, "retry", retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

func (c *Client) subscribeOnce(ctx context.Context, fn func(state string)) error {
	u, err := c.eventsURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("X-Client-Id", c.clientID)
	conn, _, err := c.dialer.DialContext(ctx, u, header)
	if err != nil {
		return fmt.Errorf("dial state feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	slog.Info("state feed connected", "url", u)
	for {
		var evt types.StateEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if errors.Is(err, types.ErrUnknownState) {
				slog.Warn("reject pushed state", "error", err)
				continue
			}
			return fmt.Errorf("read state feed: %w", err)
		}
		if evt.Type != types.StateEventType {
			continue
		}
		fn(evt.State.String())
	}
}

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	return u.String(), nil
}
