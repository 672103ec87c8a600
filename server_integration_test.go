package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vtube/models"
)

// Integration tests are opt-in: set DB_DSN_TEST=1 and DB_DSN to run
// them against a real Postgres.
func setupIntegrationServer(t *testing.T) (*gin.Engine, UserStore) {
	t.Helper()
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	db, err := initDB(DBConfig{DSN: os.Getenv("DB_DSN"), AutoMigrate: true})
	require.NoError(t, err)

	store := newGormUserStore(db)
	codec := testCodec()
	sessions := newSessionManager(store, codec, zap.NewNop())
	srv := newServer(testServerConfig(), zap.NewNop(), store, sessions, codec, &fakeMediaStore{})
	r := gin.New()
	srv.setupRoutes(r)
	return r, store
}

func seedIntegrationUser(t *testing.T, store UserStore) *models.User {
	t.Helper()
	hash, err := hashPassword("pass12")
	require.NoError(t, err)
	suffix := time.Now().UnixNano()
	user := &models.User{
		FullName:       "Integration User",
		Email:          fmt.Sprintf("it-%d@example.com", suffix),
		Username:       fmt.Sprintf("it-user-%d", suffix),
		HashedPassword: hash,
		Avatar:         "https://cdn.test/avatars/it.jpg",
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestSessionLifecycleIntegration(t *testing.T) {
	r, store := setupIntegrationServer(t)
	user := seedIntegrationUser(t, store)

	// Login
	cookies := loginCookies(t, r, user.Username, "pass12")
	firstRefresh := cookieValue(cookies, "refreshToken")
	require.NotEmpty(t, firstRefresh)

	// Rotate
	rec := performRequest(r, http.MethodPost, "/refresh", nil, "", cookies, "")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	rotated := cookieValue(rec.Result().Cookies(), "refreshToken")
	assert.NotEqual(t, firstRefresh, rotated)

	// Replay of the superseded token
	rec = performRequest(r, http.MethodPost, "/refresh", nil, "", cookies, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout with a fresh login, then the revoked token is dead
	cookies = loginCookies(t, r, user.Username, "pass12")
	rec = performRequest(r, http.MethodPost, "/logout", nil, "", cookies, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(r, http.MethodPost, "/refresh", nil, "", cookies, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Exercises the conditional UPDATE under real concurrency: racing
// refreshes of one stored token must produce exactly one winner.
func TestConcurrentRefreshIntegration(t *testing.T) {
	r, store := setupIntegrationServer(t)
	user := seedIntegrationUser(t, store)
	cookies := loginCookies(t, r, user.Username, "pass12")

	const n = 4
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := performRequest(r, http.MethodPost, "/refresh", nil, "", cookies, "")
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, code := range codes {
		if code == http.StatusOK {
			wins++
		} else {
			assert.Equal(t, http.StatusUnauthorized, code)
		}
	}
	assert.Equal(t, 1, wins)
}
