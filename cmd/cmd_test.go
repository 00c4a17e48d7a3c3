package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sevenday/challenge/server/config"
	mw "github.com/sevenday/challenge/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "cmd-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// writeConfig writes a memory-mode config pointing at the shipped catalog.
func writeConfig(t *testing.T, secret string) string {
	t.Helper()
	catalog, err := filepath.Abs(filepath.Join("..", "data", "catalog.yaml"))
	require.NoError(t, err)
	body := fmt.Sprintf(`
server:
  debug: true
  admin_key: admin
database:
  mode: memory
  sqlite_path: %s
security:
  jwt_secret: %q
challenge:
  catalog_path: %s
  bonus_delay: 0s
  leaderboard_refresh: 0s
`, strings.ReplaceAll(t.Name(), "/", "_"), secret, catalog)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "challenge (devel)\n", out)
}

func TestCatalogCheck_Shipped(t *testing.T) {
	out, err := run(t, "catalog", "check", filepath.Join("..", "data", "catalog.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "ok: 19 quests, 5 artifacts")
}

func TestCatalogCheck_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quests:\n  - id: x\n    category: nope\n    points: 0\n    inputKind: text\n"), 0o644))
	_, err := run(t, "catalog", "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestCatalogCheck_NeedsFile(t *testing.T) {
	_, err := run(t, "catalog", "check")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--config", writeConfig(t, testSecret), "--ttl", "1h", "u1")
	require.NoError(t, err)

	claims, err := mw.ParseToken(strings.TrimSpace(out), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_NoSecret(t *testing.T) {
	_, err := run(t, "token", "-c", writeConfig(t, ""), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestMigrate(t *testing.T) {
	out, err := run(t, "migrate", "-c", writeConfig(t, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "schema up to date (memory)\n", out)
}

func TestNewApp_RequiresSecret(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	_, err = newApp(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewApp_Routes(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, testSecret))
	require.NoError(t, err)
	a, err := newApp(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/challenge", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := mw.GenerateToken("u1", testSecret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/challenge/start", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Instance struct {
			UserID string `json:"user_id"`
			Status string `json:"status"`
		} `json:"instance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.Instance.UserID)
	assert.Equal(t, "active", body.Instance.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/scheduler", nil)
	req.Header.Set("X-Admin-Key", "admin")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
