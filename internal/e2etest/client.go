package e2etest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"github.com/justinas/nosurf"
	"github.com/myrjola/sleuth/internal/errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the JSON API of the server like the browser would: it keeps the session cookies and sends the
// CSRF token with state-changing requests.
type Client struct {
	client    *http.Client
	url       string
	csrfToken string
}

// NewClient creates a session-aware HTTP client for the server at url.
func NewClient(url string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client:    &http.Client{Jar: jar}, //nolint:exhaustruct // defaults are fine
		url:       url,
		csrfToken: "",
	}, nil
}

// WaitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	var (
		err  error
		req  *http.Request
		resp *http.Response
	)
	for {
		if req, err = http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.url+urlPath,
			nil,
		); err != nil {
			return errors.Wrap(err, "create request")
		}

		if resp, err = c.client.Do(req); err == nil {
			if resp.StatusCode == http.StatusOK {
				if err = resp.Body.Close(); err != nil {
					return errors.Wrap(err, "close response body")
				}
				return nil
			}
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
			time.Sleep(100 * time.Millisecond) //nolint:mnd // 100ms
		}
	}
}

// Session is the anonymous player session.
type Session struct {
	PlayerID  string `json:"playerId"`
	CSRFToken string `json:"csrfToken"`
}

// StartSession starts the player session and remembers the CSRF token for the following requests.
func (c *Client) StartSession(ctx context.Context) (Session, error) {
	var session Session
	if status, err := c.GetJSON(ctx, "/api/session", &session); err != nil {
		return Session{}, errors.Wrap(err, "get session")
	} else if status != http.StatusOK {
		return Session{}, errors.New("unexpected status code", slog.Int("status", status))
	}
	c.csrfToken = session.CSRFToken
	return session, nil
}

// Get fetches a URL and returns the response.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, urlPath, nil)
}

// GetJSON fetches a URL and decodes the JSON response into v unless v is nil. The status code is returned.
func (c *Client) GetJSON(ctx context.Context, urlPath string, v any) (int, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return 0, err
	}
	return decode(resp, v)
}

// PostJSON posts body as JSON and decodes the JSON response into v unless v is nil. The status code is returned.
func (c *Client) PostJSON(ctx context.Context, urlPath string, body any, v any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, errors.Wrap(err, "marshal body")
	}
	resp, err := c.do(ctx, http.MethodPost, urlPath, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	return decode(resp, v)
}

// Event is a server-sent event.
type Event struct {
	Name string
	Data string
}

// Events reads the server-sent events of the stream at urlPath until the server closes it.
func (c *Client) Events(ctx context.Context, urlPath string) ([]Event, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code", slog.Int("status", resp.StatusCode))
	}

	var (
		events  []Event
		current Event
		scanner = bufio.NewScanner(resp.Body)
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Name != "" || current.Data != "" {
				events = append(events, current)
			}
			current = Event{Name: "", Data: ""}
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data += strings.TrimPrefix(line, "data: ")
		}
	}
	if err = scanner.Err(); err != nil {
		return events, errors.Wrap(err, "read events")
	}
	return events, nil
}

func (c *Client) do(ctx context.Context, method, urlPath string, body io.Reader) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, method, urlPath, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(nosurf.HeaderName, c.csrfToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("method", method), slog.String("path", urlPath))
	}
	return resp, nil
}

// newRequestWithContext creates a new HTTP request to the server that respects the given context.
func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	return req, nil
}

func decode(resp *http.Response, v any) (int, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, errors.Wrap(err, "decode response", slog.Int("status", resp.StatusCode))
	}
	return resp.StatusCode, nil
}
