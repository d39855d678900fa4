// Package dialogue proxies conversational sessions to an external
// dialogue engine. The proxy holds no conversation logic of its own:
// it mints a session handle, maps it to the engine's conversation id
// and forwards messages verbatim. Transient upstream failures are
// surfaced immediately, never retried.
package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

var (
	ErrSessionNotExist = errors.New("session does not exist")
	ErrUpstream        = errors.New("dialogue engine request failed")
)

// Client talks to the dialogue engine and tracks live sessions by
// caller-held handles, so concurrent conversations never clobber each
// other.
type Client struct {
	logger  *zap.SugaredLogger
	baseURL string
	http    *http.Client

	mu       sync.RWMutex
	sessions map[string]string // handle -> upstream conversation id
}

// NewClient returns a Client configured against cfg.BaseURL.
func NewClient(logger *zap.SugaredLogger, cfg Config) *Client {
	return &Client{
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
		sessions: make(map[string]string),
	}
}

// StartSession opens a new conversation upstream and returns the
// handle the caller must present on every message call.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	body, err := c.post(ctx, "/session", []byte(`{}`))
	if err != nil {
		return "", err
	}

	upstreamID := string(fastjson.GetBytes(body, "sessionId"))
	if upstreamID == "" {
		c.logger.Errorf("dialogue engine returned no session id: %s", body)
		return "", ErrUpstream
	}

	handle := xid.New().String()

	c.mu.Lock()
	c.sessions[handle] = upstreamID
	c.mu.Unlock()

	c.logger.Debugf("Started dialogue session (handle: %s)", handle)

	return handle, nil
}

// SendMessage forwards text to the conversation behind handle and
// returns the engine's reply.
func (c *Client) SendMessage(ctx context.Context, handle, text string) (string, error) {
	c.mu.RLock()
	upstreamID, ok := c.sessions[handle]
	c.mu.RUnlock()
	if !ok {
		return "", ErrSessionNotExist
	}

	payload, err := json.Marshal(struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}{
		SessionID: upstreamID,
		Message:   text,
	})
	if err != nil {
		return "", err
	}

	body, err := c.post(ctx, "/message", payload)
	if err != nil {
		return "", err
	}

	return string(fastjson.GetBytes(body, "reply")), nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Errorf("dialogue engine request to %s: %v", path, err)
		return nil, ErrUpstream
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		c.logger.Errorf("reading dialogue engine response from %s: %v", path, err)
		return nil, ErrUpstream
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Errorf("dialogue engine responded %d on %s: %s", resp.StatusCode, path, body)
		return nil, ErrUpstream
	}

	return body, nil
}
