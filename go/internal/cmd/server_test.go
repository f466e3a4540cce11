package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/standup/go/internal/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>standup</html>"), 0o600))

	cfg := config.Default()
	cfg.StaticDir = staticDir
	cfg.Discord.APIURL = "http://127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	services, err := setupServices(ctx, cfg)
	require.NoError(t, err)
	done := services.Start(ctx)

	server := httptest.NewServer(setupServer(cfg, services).Handler)
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		services.Close()
	})
	return server
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		contains string
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK, contains: "OK"},
		{name: "app root", method: http.MethodGet, path: "/", status: http.StatusOK, contains: "standup"},
		{name: "app fallback", method: http.MethodGet, path: "/some/client/route", status: http.StatusOK, contains: "standup"},
		{name: "token schema", method: http.MethodPost, path: "/api/token", body: `{}`, status: http.StatusBadRequest, contains: "Invalid data"},
		{name: "token validator unreachable", method: http.MethodPost, path: "/api/token", body: `{"code":"c","instanceId":"i"}`, status: http.StatusBadRequest, contains: "Invalid instance"},
		{name: "no session", method: http.MethodGet, path: "/api/sessions/i-1/state", status: http.StatusNotFound},
		{name: "stats", method: http.MethodGet, path: "/ws/stats", status: http.StatusOK, contains: `"active_sessions":0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contains != "" {
				var sb strings.Builder
				_, err := io.Copy(&sb, resp.Body)
				require.NoError(t, err)
				assert.Contains(t, sb.String(), tt.contains)
			}
		})
	}
}

func TestServerCORSPreflight(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/token", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://1234.discordsays.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
