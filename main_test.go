package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/padraicbc/usertokenapi/config"
	"github.com/padraicbc/usertokenapi/db"
	mw "github.com/padraicbc/usertokenapi/middleware"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:       config.DriverSQLite,
		DBPath:         filepath.Join(t.TempDir(), "users.db"),
		BusyTimeout:    5 * time.Second,
		InitMaxRetries: 1,
		CreateIndex:    true,
		SeedBatchSize:  2,
		SeedUserCount:  4,
		RequestTimeout: 5 * time.Second,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*echo.Echo, *bun.DB) {
	t.Helper()
	bdb, err := db.Setup(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.InitSchema(context.Background(), bdb, db.InitOptions{MaxRetries: 1, CreateIndex: true}))
	return newServer(cfg, zap.NewNop(), bdb), bdb
}

func call(e *echo.Echo, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_SeedThenVerify(t *testing.T) {
	e, _ := newTestServer(t, testConfig(t))

	rec := call(e, http.MethodPost, "/setup-database/3", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	var seeded struct {
		Success  bool `json:"success"`
		Inserted int  `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &seeded))
	assert.True(t, seeded.Success)
	assert.Equal(t, 3, seeded.Inserted)

	body := `{"username":"user2@example.com","hashedPassword":"` + db.HashPassword("password2") + `"}`
	rec = call(e, http.MethodPost, "/api/auth/get-user-token", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Success bool   `json:"success"`
		UserID  *int64 `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.True(t, login.Success)
	assert.NotNil(t, login.UserID)

	rec = call(e, http.MethodPost, "/api/auth/get-user-token", `{"username":"unknown@example.com","hashedPassword":"anything"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)

	rec = call(e, http.MethodPost, "/setup-database/-1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(e, http.MethodGet, "/api/auth/create-db", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"inserted":4`)
}

func TestServer_HealthAndReady(t *testing.T) {
	e, bdb := newTestServer(t, testConfig(t))

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/ready", "", "").Code)

	require.NoError(t, bdb.Close())
	rec := call(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = call(e, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ready":false}`, rec.Body.String())
}

func TestServer_AdminGuard(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminTokenSecret = "secret"
	e, _ := newTestServer(t, cfg)

	rec := call(e, http.MethodPost, "/setup-database/2", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := mw.NewAdminToken(cfg.AdminKey(), "ops", time.Minute)
	require.NoError(t, err)
	rec = call(e, http.MethodPost, "/setup-database/2", "", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	// verification stays public
	rec = call(e, http.MethodPost, "/api/auth/get-user-token", `{"username":"user1@example.com","hashedPassword":"x"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	e, _ := newTestServer(t, testConfig(t))
	rec := call(e, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

func TestServer_DeadlineKeepsStoreFailureStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.RequestTimeout = 100 * time.Millisecond
	cfg.BusyTimeout = 50 * time.Millisecond
	cfg.SeedBatchSize = 1000
	e, _ := newTestServer(t, cfg)

	rec := call(e, http.MethodPost, "/setup-database/2000000", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"seeding failed"}`, rec.Body.String())
}

func TestRun_InitFailureReturnsError(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "users.db")
	cfg.InitMaxRetries = 2
	cfg.InitRetryDelay = time.Millisecond

	core, logs := observer.New(zap.WarnLevel)
	err := run(context.Background(), cfg, zap.New(core))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store initialization")
	assert.Equal(t, 2, logs.FilterMessage("store not reachable").Len())
}
