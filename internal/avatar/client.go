package avatar

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"elaine/pkg/util"
)

// Config identifies the plugin towards the avatar application.
type Config struct {
	URL             string
	PluginName      string
	PluginDeveloper string
	TokenFile       string
	KeepAlive       time.Duration
}

// Client is a persistent connection to the avatar-control API. One
// mutex serializes all wire traffic; the connection and authentication
// flags are only touched under it. A send failure on an authenticated
// connection demotes the client so the next call re-authenticates.
type Client struct {
	cfg Config
	log *slog.Logger

	mu            sync.Mutex
	conn          *ws.Conn
	authenticated bool
	token         string

	stopOnce sync.Once
	stop     chan struct{}
}

func New(cfg Config) *Client {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		log:  slog.Default().With("component", "avatar"),
		stop: make(chan struct{}),
	}
}

// Authenticate ensures the connection is live and authenticated. It is
// idempotent: when already authenticated on a live connection it makes
// no network round trip. A rejected token is a fatal error for the call
// and is not retried.
func (c *Client) Authenticate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked()
}

// SetParameter clamps value to [0,1] and injects it as a single
// parameter update. No retry on failure; the caller treats an error as
// one skipped frame.
func (c *Client) SetParameter(name string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authenticateLocked(); err != nil {
		return err
	}
	_, err := c.roundTripLocked(msgInject, injectRequestData{
		ParameterValues: []parameterValue{{ID: name, Value: util.Clamp01(value)}},
	})
	return err
}

// Start runs the keep-alive loop. Probe failures are logged and
// swallowed so the timer keeps running until Close.
func (c *Client) Start() {
	go func() {
		ticker := time.NewTicker(c.cfg.KeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := c.authenticateLocked()
				if err == nil {
					_, err = c.roundTripLocked(msgAPIAvailable, nil)
				}
				c.mu.Unlock()
				if err != nil {
					c.log.Warn("keep-alive probe failed", "err", err)
				}
			}
		}
	}()
}

func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	return nil
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, _, err := ws.DefaultDialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.conn = conn
	return nil
}

func (c *Client) teardownLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.authenticated = false
}

// roundTripLocked sends one request and reads its response. Transport
// errors tear the connection down so the next call reconnects and
// re-authenticates.
func (c *Client) roundTripLocked(msgType string, data any) (*responseEnvelope, error) {
	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	req := requestEnvelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   uuid.NewString(),
		MessageType: msgType,
		Data:        data,
	}
	if err := c.conn.WriteJSON(req); err != nil {
		c.teardownLocked()
		return nil, fmt.Errorf("send %s: %w", msgType, err)
	}

	var resp responseEnvelope
	if err := c.conn.ReadJSON(&resp); err != nil {
		c.teardownLocked()
		return nil, fmt.Errorf("read %s response: %w", msgType, err)
	}

	if resp.MessageType == msgAPIError {
		var e apiErrorData
		_ = json.Unmarshal(resp.Data, &e)
		return nil, fmt.Errorf("api error %d: %s", e.ErrorID, e.Message)
	}
	return &resp, nil
}

func (c *Client) authenticateLocked() error {
	if c.authenticated && c.conn != nil {
		return nil
	}
	if err := c.connectLocked(); err != nil {
		return err
	}

	token, err := c.ensureTokenLocked()
	if err != nil {
		return err
	}

	resp, err := c.roundTripLocked(msgAuthRequest, authRequestData{
		PluginName:          c.cfg.PluginName,
		PluginDeveloper:     c.cfg.PluginDeveloper,
		AuthenticationToken: token,
	})
	if err != nil {
		return err
	}

	var auth authResponseData
	if err := json.Unmarshal(resp.Data, &auth); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if !auth.Authenticated {
		c.authenticated = false
		return fmt.Errorf("authentication rejected: %s", auth.Reason)
	}
	c.authenticated = true
	return nil
}

// ensureTokenLocked loads the persisted token or requests a fresh one.
// A token request only completes once the user allows the plugin in the
// avatar application, so the read blocks on that confirmation.
func (c *Client) ensureTokenLocked() (string, error) {
	if c.token != "" {
		return c.token, nil
	}
	if raw, err := os.ReadFile(c.cfg.TokenFile); err == nil {
		if tok := strings.TrimSpace(string(raw)); tok != "" {
			c.token = tok
			return c.token, nil
		}
	}

	c.log.Info("requesting access token; confirm the plugin in the avatar application")
	resp, err := c.roundTripLocked(msgTokenRequest, tokenRequestData{
		PluginName:      c.cfg.PluginName,
		PluginDeveloper: c.cfg.PluginDeveloper,
	})
	if err != nil {
		return "", err
	}

	var tok tokenResponseData
	if err := json.Unmarshal(resp.Data, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AuthenticationToken == "" {
		return "", fmt.Errorf("empty token in response")
	}
	c.token = tok.AuthenticationToken

	if c.cfg.TokenFile != "" {
		if err := os.WriteFile(c.cfg.TokenFile, []byte(c.token), 0o600); err != nil {
			c.log.Warn("persist token", "err", err)
		}
	}
	return c.token, nil
}
