package avatar

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStudio is a minimal in-process avatar API endpoint.
type fakeStudio struct {
	srv *httptest.Server

	mu         sync.Mutex
	authCount  int
	tokenCount int
	injected   []parameterValue
	rejectAuth bool
}

func newFakeStudio(t *testing.T) *fakeStudio {
	t.Helper()
	f := &fakeStudio{}
	upgrader := ws.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			raw := struct {
				RequestID   string          `json:"requestID"`
				MessageType string          `json:"messageType"`
				Data        json.RawMessage `json:"data"`
			}{}
			if err := conn.ReadJSON(&raw); err != nil {
				return
			}

			resp := map[string]any{
				"apiName":     apiName,
				"apiVersion":  apiVersion,
				"requestID":   raw.RequestID,
				"messageType": raw.MessageType + "Response",
			}
			switch raw.MessageType {
			case msgTokenRequest:
				f.mu.Lock()
				f.tokenCount++
				f.mu.Unlock()
				resp["data"] = tokenResponseData{AuthenticationToken: "tok-123"}
			case msgAuthRequest:
				f.mu.Lock()
				f.authCount++
				reject := f.rejectAuth
				f.mu.Unlock()
				if reject {
					resp["data"] = authResponseData{Authenticated: false, Reason: "denied by user"}
				} else {
					resp["data"] = authResponseData{Authenticated: true}
				}
			case msgInject:
				var inj injectRequestData
				_ = json.Unmarshal(raw.Data, &inj)
				f.mu.Lock()
				f.injected = append(f.injected, inj.ParameterValues...)
				f.mu.Unlock()
				resp["data"] = map[string]any{}
			case msgAPIAvailable:
				resp["data"] = map[string]any{"active": true}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStudio) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func newTestClient(f *fakeStudio, tokenFile string) *Client {
	return New(Config{
		URL:             f.wsURL(),
		PluginName:      "Elaine1",
		PluginDeveloper: "nvm1",
		TokenFile:       tokenFile,
		KeepAlive:       time.Hour,
	})
}

func TestAuthenticateObtainsAndPersistsToken(t *testing.T) {
	f := newFakeStudio(t)
	tokenFile := filepath.Join(t.TempDir(), "token.txt")
	c := newTestClient(f, tokenFile)
	defer c.Close()

	require.NoError(t, c.Authenticate())

	raw, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(raw))

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAuthenticateIsIdempotent(t *testing.T) {
	f := newFakeStudio(t)
	c := newTestClient(f, filepath.Join(t.TempDir(), "token.txt"))
	defer c.Close()

	require.NoError(t, c.Authenticate())
	require.NoError(t, c.Authenticate())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.authCount, "second call must not round-trip")
	assert.Equal(t, 1, f.tokenCount)
}

func TestAuthenticateUsesPersistedToken(t *testing.T) {
	f := newFakeStudio(t)
	tokenFile := filepath.Join(t.TempDir(), "token.txt")
	require.NoError(t, os.WriteFile(tokenFile, []byte("tok-persisted\n"), 0o600))

	c := newTestClient(f, tokenFile)
	defer c.Close()

	require.NoError(t, c.Authenticate())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 0, f.tokenCount, "persisted token must be reused")
}

func TestAuthenticateRejected(t *testing.T) {
	f := newFakeStudio(t)
	f.rejectAuth = true
	c := newTestClient(f, filepath.Join(t.TempDir(), "token.txt"))
	defer c.Close()

	err := c.Authenticate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied by user")
}

func TestSetParameterClampsValue(t *testing.T) {
	f := newFakeStudio(t)
	c := newTestClient(f, filepath.Join(t.TempDir(), "token.txt"))
	defer c.Close()

	require.NoError(t, c.SetParameter("MouthOpen", -0.5))
	require.NoError(t, c.SetParameter("MouthOpen", 1.7))
	require.NoError(t, c.SetParameter("MouthOpen", 0.42))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.injected, 3)
	assert.Equal(t, "MouthOpen", f.injected[0].ID)
	assert.Equal(t, 0.0, f.injected[0].Value)
	assert.Equal(t, 1.0, f.injected[1].Value)
	assert.InDelta(t, 0.42, f.injected[2].Value, 1e-9)
}
