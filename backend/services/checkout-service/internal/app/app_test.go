package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meterpay/backend/services/checkout-service/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - name: Basic Plan
    pricePerUnit: 5
    unitsIncluded: 100
    validityDays: 30
    status: Active
`), 0o600))

	cfg := &config.Config{}
	cfg.HTTP.Port = "0"
	cfg.Sessions.Driver = config.StoreMemory
	cfg.Sessions.TTL = time.Minute
	cfg.JWT.Secret = "test"
	cfg.Ledger.URL = "http://127.0.0.1:1"
	cfg.Ledger.Timeout = time.Second
	cfg.Catalog.Path = path
	cfg.Feed.Enabled = true
	return cfg
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Token
}

func TestAppWiresRoutes(t *testing.T) {
	a, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	tok := createSession(t, a.Handler())

	req := httptest.NewRequest(http.MethodPost, "/checkout/session/plan", strings.NewReader(`{"planName":"Basic Plan"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"DetailsEntry"`)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `checkout_actions_total{action="select_plan",result="ok"} 1`)
}

func TestAppWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Sessions.Driver = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()

	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	createSession(t, a.Handler())
	assert.Len(t, mr.Keys(), 1)
}
