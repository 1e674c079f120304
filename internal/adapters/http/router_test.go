package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Rana-X/nora/internal/app"
	"github.com/Rana-X/nora/internal/app/credentials"
	"github.com/Rana-X/nora/internal/app/orch"
	"github.com/Rana-X/nora/internal/auth"
	"github.com/Rana-X/nora/internal/config"
	"github.com/Rana-X/nora/internal/core"
	"github.com/Rana-X/nora/internal/domain"
	"github.com/Rana-X/nora/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubConn struct{}

func (stubConn) LocalIdentity() string            { return "user-abc" }
func (stubConn) SetMicrophoneEnabled(bool) error { return nil }
func (stubConn) Disconnect()                      {}

type stubDialer struct{}

func (stubDialer) Dial(_ context.Context, _ domain.SessionCredentials, _ core.DialOptions, _ core.EventSink) (core.Conn, error) {
	return stubConn{}, nil
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	reg    *app.Registry
}

type envOptions struct {
	issuer    auth.Config
	issuerURL string
	startRate rate.Limit
}

func newEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		ReadLimit:  4096,
		PingPeriod: time.Second,
		Secret:     "test-secret",
	}
	reg := app.NewRegistry(app.Options{
		Session:    orch.Config{Dialer: stubDialer{}},
		StartRate:  opts.startRate,
		StartBurst: 1,
	})
	collector := metrics.NewPrometheusCollector(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	r := SetupRouter(ctx, cfg, Deps{
		Registry: reg,
		Flow:     credentials.NewFlow(credentials.Options{IssuerURL: opts.issuerURL, Timeout: time.Second}),
		Issuer:   auth.NewIssuer(opts.issuer),
		Metrics:  collector,
	})
	srv := httptest.NewServer(r)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		reg.LeaveAll()
	})
	return &testEnv{srv: srv, client: &http.Client{Jar: jar, Timeout: 5 * time.Second}, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decodeMap(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

// fakeIssuer answers the credential request the way the token endpoint does.
func fakeIssuer(t *testing.T, status int, body func(room string) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body(req.RoomName))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var configured = auth.Config{URL: "wss://lk.example", APIKey: "key", APISecret: "secret-secret-secret-secret-1234"}

func TestToken_MissingFields(t *testing.T) {
	e := newEnv(t, envOptions{issuer: configured})

	code, body := e.do(t, http.MethodPost, "/api/token", map[string]string{"roomName": "r"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing roomName or participantName", decodeMap(t, body)["error"])
}

func TestToken_NotConfigured(t *testing.T) {
	e := newEnv(t, envOptions{})

	code, body := e.do(t, http.MethodPost, "/api/token", TokenRequest{RoomName: "r", ParticipantName: "p"})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Server misconfigured", decodeMap(t, body)["error"])
}

func TestToken_TooLong(t *testing.T) {
	e := newEnv(t, envOptions{issuer: configured})

	code, _ := e.do(t, http.MethodPost, "/api/token", TokenRequest{
		RoomName:        strings.Repeat("r", domain.MaxRoomNameLen+1),
		ParticipantName: "p",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestToken_Issued(t *testing.T) {
	e := newEnv(t, envOptions{issuer: configured})

	code, body := e.do(t, http.MethodPost, "/api/token", TokenRequest{RoomName: "nora-room-1", ParticipantName: "user-1"})
	require.Equal(t, http.StatusOK, code)
	m := decodeMap(t, body)
	assert.NotEmpty(t, m["token"])
	assert.Equal(t, "wss://lk.example", m["wsUrl"])
	assert.Equal(t, "nora-room-1", m["roomName"])

	code, body = e.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "nora_tokens_issued_total 1")
}

func TestSession_Lifecycle(t *testing.T) {
	issuer := fakeIssuer(t, http.StatusOK, func(room string) any {
		return domain.SessionCredentials{Token: "t1", URL: "wss://x", RoomName: room}
	})
	e := newEnv(t, envOptions{issuerURL: issuer.URL})

	code, body := e.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pre_session", decodeMap(t, body)["mode"])

	code, _ = e.do(t, http.MethodPost, "/api/session/microphone", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = e.do(t, http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusAccepted, code, string(body))
	assert.True(t, strings.HasPrefix(decodeMap(t, body)["roomName"].(string), "nora-room-"))

	require.Eventually(t, func() bool {
		_, body := e.do(t, http.MethodGet, "/api/session", nil)
		return decodeMap(t, body)["status"] == "Connected as user-abc"
	}, 2*time.Second, 10*time.Millisecond)

	_, body = e.do(t, http.MethodGet, "/api/session", nil)
	view := decodeMap(t, body)
	assert.Equal(t, "avatar_full", view["mode"])
	assert.Equal(t, "connected", view["connection"])

	code, body = e.do(t, http.MethodPost, "/api/session/microphone", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decodeMap(t, body)["microphoneEnabled"])

	code, _ = e.do(t, http.MethodPost, "/api/session/microphone", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = e.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, 0, e.reg.Len())
}

func TestSession_IssuerFailure(t *testing.T) {
	issuer := fakeIssuer(t, http.StatusInternalServerError, func(string) any {
		return map[string]string{"error": "Server misconfigured"}
	})
	e := newEnv(t, envOptions{issuerURL: issuer.URL})

	code, body := e.do(t, http.MethodPost, "/api/session", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Server misconfigured", decodeMap(t, body)["error"])
	assert.Equal(t, 0, e.reg.Len())
}

func TestSession_Malformed(t *testing.T) {
	issuer := fakeIssuer(t, http.StatusOK, func(string) any {
		return map[string]string{"token": ""}
	})
	e := newEnv(t, envOptions{issuerURL: issuer.URL})

	code, body := e.do(t, http.MethodPost, "/api/session", nil)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "Failed to get credentials", decodeMap(t, body)["error"])
}

func TestSession_RateLimited(t *testing.T) {
	issuer := fakeIssuer(t, http.StatusOK, func(room string) any {
		return domain.SessionCredentials{Token: "t1", URL: "wss://x", RoomName: room}
	})
	e := newEnv(t, envOptions{issuerURL: issuer.URL, startRate: rate.Every(time.Hour)})

	code, _ := e.do(t, http.MethodPost, "/api/session", nil)
	require.Equal(t, http.StatusAccepted, code)
	code, _ = e.do(t, http.MethodPost, "/api/session", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestSession_WSWithoutSession(t *testing.T) {
	e := newEnv(t, envOptions{})

	code, _ := e.do(t, http.MethodGet, "/api/session/ws", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, envOptions{})

	code, body := e.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	m := decodeMap(t, body)
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, false, m["issuer"])
}

func TestClientTokenMiddleware_Stable(t *testing.T) {
	r := gin.New()
	r.Use(sessionsForTest(), ClientTokenMiddleware())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("client_token")) })
	srv := httptest.NewServer(r)
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	get := func() string {
		resp, err := client.Get(srv.URL + "/id")
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}
	first := get()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, get())
}

func sessionsForTest() gin.HandlerFunc {
	return sessions.Sessions("test", cookie.NewStore([]byte("test-secret")))
}
