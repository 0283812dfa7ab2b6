package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsite/backend/config"
	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/internal/questions"
	"github.com/pollsite/backend/internal/sessions"
	"github.com/pollsite/backend/internal/testutil"
)

type fixture struct {
	router    *gin.Engine
	questions *questions.GormRepository
	users     *auth.GormRepository
	store     *sessions.MemoryStore
}

func setup(t *testing.T, health func(context.Context) error) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	qRepo := questions.NewGormRepository(db)
	require.NoError(t, qRepo.Migrate(ctx))
	uRepo := auth.NewGormRepository(db)
	require.NoError(t, uRepo.Migrate(ctx))

	_, err := auth.CreateUser(ctx, uRepo, auth.CreateUserParams{Username: "testuser", Password: "secret"})
	require.NoError(t, err)
	_, err = auth.CreateUser(ctx, uRepo, auth.CreateUserParams{Username: "admin", Password: "secret", IsStaff: true})
	require.NoError(t, err)

	store := sessions.NewMemoryStore(time.Minute)
	cfg := &config.Config{}
	cfg.Server.CORSAllowedOrigins = "*"
	cfg.Auth.LoginRedirectURL = "/"

	r, err := NewRouter(Deps{
		Config:    cfg,
		Questions: qRepo,
		Users:     uRepo,
		Sessions:  sessions.NewManager(store, sessions.Options{Secret: "test", TTL: time.Hour}, nil),
		Limiter:   auth.NewLoginLimiter(0, 0),
		Health:    health,
	})
	require.NoError(t, err)
	return &fixture{router: r, questions: qRepo, users: uRepo, store: store}
}

func (f *fixture) do(method, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {"secret"}}
	w := f.do(http.MethodPost, "/accounts/login/", form.Encode())
	require.Equal(t, http.StatusFound, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sessionid" {
			return ck
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestRouter_LoginThenIndex(t *testing.T) {
	f := setup(t, nil)

	form := url.Values{"username": {"testuser"}, "password": {"secret"}}
	w := f.do(http.MethodPost, "/accounts/login/", form.Encode())
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	ck := f.login(t, "testuser")
	w = f.do(http.MethodGet, "/", "", ck)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Logged in as testuser.")
	assert.Contains(t, w.Body.String(), "No polls are available.")
}

func TestRouter_Logout(t *testing.T) {
	f := setup(t, nil)
	ck := f.login(t, "testuser")
	require.Equal(t, 1, f.store.Len())

	w := f.do(http.MethodGet, "/logout/", "", ck)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, 0, f.store.Len())

	// The old cookie no longer identifies a user.
	w = f.do(http.MethodGet, "/", "", ck)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Logged in as")
}

func TestRouter_PollPages(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	past := &models.Question{Text: "Past question.", PubDate: time.Now().AddDate(0, 0, -30),
		Choices: []models.Choice{{Text: "Yes"}}}
	future := &models.Question{Text: "Future question.", PubDate: time.Now().AddDate(0, 0, 30)}
	require.NoError(t, f.questions.Create(ctx, past))
	require.NoError(t, f.questions.Create(ctx, future))

	w := f.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Past question.")
	assert.NotContains(t, w.Body.String(), "Future question.")

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, fmt.Sprintf("/%d/", past.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, fmt.Sprintf("/%d/", future.ID), "").Code)

	w = f.do(http.MethodPost, fmt.Sprintf("/%d/vote/", past.ID), "choice="+fmt.Sprint(past.Choices[0].ID))
	assert.Equal(t, http.StatusFound, w.Code)
	w = f.do(http.MethodGet, fmt.Sprintf("/%d/results/", past.ID), "")
	assert.Contains(t, w.Body.String(), "Yes -- 1 vote<")
}

func TestRouter_StaffAPI(t *testing.T) {
	f := setup(t, nil)
	body := `{"question_text":"Staff question?"}`

	w := f.do(http.MethodPost, "/api/questions", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/api/questions", body, f.login(t, "testuser"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := f.login(t, "admin")
	w = f.do(http.MethodPost, "/api/questions", body, admin)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, "/api/admin/questions", "", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Staff question?")

	w = f.do(http.MethodGet, "/api/questions", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	f := setup(t, nil)

	w := f.do(http.MethodGet, "/no/such/page", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not Found")

	w = f.do(http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRouter_Health(t *testing.T) {
	w := setup(t, nil).do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	failing := func(context.Context) error { return errors.New("db down") }
	w = setup(t, failing).do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	f := setup(t, nil)
	f.do(http.MethodGet, "/", "")

	w := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.Contains(w.Body.Bytes(), []byte("http_requests_total")))
}
