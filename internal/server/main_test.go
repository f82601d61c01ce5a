package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "server-test-secret-0123456789abcdef0123456789"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := gorm.Open(database.Dialector("sqlite://"+filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Port:        "0",
		JWTSecret:   testSecret,
		UploadDir:   filepath.Join(dir, "uploads"),
		UploadMaxMB: 1,
		Env:         "test",
	}
	s, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	return &testEnv{server: s, app: s.NewApp(), db: db}
}

// do sends a request and decodes a JSON response body into out when out is non-nil.
func (e *testEnv) do(t *testing.T, req *http.Request, token string, out any) int {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
	return resp.StatusCode
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any, token string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(t, req, token, out)
}

type authBody struct {
	Token string `json:"token"`
	User  struct {
		ID        uint   `json:"id"`
		Username  string `json:"username"`
		Name      string `json:"name"`
		Avatar    string `json:"avatar"`
		Bio       string `json:"bio"`
		Followers int    `json:"followers"`
		Following []uint `json:"following"`
	} `json:"user"`
}

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *testEnv) signup(t *testing.T, username, name string) authBody {
	t.Helper()
	var out authBody
	status := e.doJSON(t, http.MethodPost, "/api/signup", map[string]string{
		"username": username,
		"password": "secret-" + username,
		"name":     name,
	}, "", &out)
	require.Equal(t, http.StatusOK, status)
	return out
}
