package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatehouse/internal/config"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret  = "test-secret-key-12345678901234567890123456789012"
	testSociety = "Green Acres"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
	mr  *miniredis.Miniredis
}

type envOption func(*config.Config)

func withFlags(raw string) envOption {
	return func(c *config.Config) { c.FeatureFlags = raw }
}

func testConfig(opts ...envOption) *config.Config {
	cfg := &config.Config{
		Port:           "0",
		JWTSecret:      testSecret,
		JWTIssuer:      "gatehouse",
		JWTAudience:    "gatehouse-app",
		AllowedOrigins: "http://localhost:5173",
		Env:            "test",
		QRSize:         128,
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// newEnv builds a server over in-memory sqlite. Redis is off unless
// withRedis is set, which keeps realtime fanout on the local hub.
func newEnv(t *testing.T, withRedis bool, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{db: testutil.NewSQLiteDB(t)}
	if withRedis {
		env.mr = miniredis.RunT(t)
		env.rdb = redis.NewClient(&redis.Options{Addr: env.mr.Addr()})
		t.Cleanup(func() { _ = env.rdb.Close() })
	}

	srv, err := NewServerWithDeps(testConfig(opts...), env.db, env.rdb)
	require.NoError(t, err)
	env.srv = srv
	env.app = srv.NewApp()
	return env
}

func (e *testEnv) token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := middleware.IssueAccessToken(e.srv.tokens, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request as user (nil for anonymous) with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, path string, user *models.User, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+e.token(t, user.ID))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) reload(t *testing.T, id uint) models.VisitorRecord {
	t.Helper()
	var rec models.VisitorRecord
	require.NoError(t, e.db.First(&rec, id).Error)
	return rec
}

// people is the usual cast of one society plus an outsider.
type people struct {
	guard, resident, neighbour, admin, business, outsider *models.User
}

func (e *testEnv) seedPeople(t *testing.T) people {
	t.Helper()
	return people{
		guard:     testutil.CreateUser(t, e.db, models.RoleGuard, testSociety, "", "Ravi"),
		resident:  testutil.CreateUser(t, e.db, models.RoleResident, testSociety, "A-101", "Meera"),
		neighbour: testutil.CreateUser(t, e.db, models.RoleResident, testSociety, "B-202", "Arjun"),
		admin:     testutil.CreateUser(t, e.db, models.RoleAdmin, testSociety, "", "Office"),
		business:  testutil.CreateUser(t, e.db, models.RoleBusiness, testSociety, "", "Kiosk"),
		outsider:  testutil.CreateUser(t, e.db, models.RoleGuard, "Blue Hills", "", "Sam"),
	}
}
