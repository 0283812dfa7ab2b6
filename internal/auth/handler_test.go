package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsite/backend/internal/sessions"
	"github.com/pollsite/backend/internal/web"
)

type authFixture struct {
	router *gin.Engine
	store  *sessions.MemoryStore
	repo   *GormRepository
}

func setupAuth(t *testing.T, limiter *LoginLimiter) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newGormRepo(t)
	_, err := CreateUser(context.Background(), repo, CreateUserParams{Username: "testuser", Password: "secret"})
	require.NoError(t, err)

	store := sessions.NewMemoryStore(time.Minute)
	sm := sessions.NewManager(store, sessions.Options{Secret: "test", TTL: time.Hour}, nil)
	h := NewHandler(repo, sm, limiter, "/", nil)

	tmpl, err := web.Templates()
	require.NoError(t, err)
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(sm.Middleware())
	r.GET("/accounts/login/", h.ShowLogin)
	r.POST("/accounts/login/", h.Login)
	r.GET("/logout/", h.Logout)
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })
	return &authFixture{router: r, store: store, repo: repo}
}

func (f *authFixture) login(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/accounts/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestLogin_RedirectsHome(t *testing.T) {
	f := setupAuth(t, nil)

	w := f.login(t, url.Values{"username": {"testuser"}, "password": {"secret"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	ck := findCookie(w, "sessionid")
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 1, f.store.Len())

	// Following the redirect with the new cookie succeeds.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	u, err := f.repo.GetByUsername(context.Background(), "testuser")
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setupAuth(t, nil)

	w := f.login(t, url.Values{"username": {"testuser"}, "password": {"nope"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")
	assert.Nil(t, findCookie(w, "sessionid"))
	assert.Equal(t, 0, f.store.Len())
}

func TestLogin_Next(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"/3/", "/3/"},
		{"", "/"},
		{"https://evil.example/", "/"},
		{"//evil.example/", "/"},
		{"/\t/evil.com", "/"},
		{"/\r\n/evil.com", "/"},
		{"/\\evil.com", "/"},
		{"javascript:alert(1)", "/"},
		{"/3/results/?x=1", "/3/results/?x=1"},
	}
	for _, tc := range tests {
		t.Run(tc.next, func(t *testing.T) {
			f := setupAuth(t, nil)
			w := f.login(t, url.Values{"username": {"testuser"}, "password": {"secret"}, "next": {tc.next}})
			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tc.want, w.Header().Get("Location"))
		})
	}
}

func TestLogin_RateLimited(t *testing.T) {
	f := setupAuth(t, NewLoginLimiter(1, 2))
	form := url.Values{"username": {"testuser"}, "password": {"nope"}}

	assert.Equal(t, http.StatusOK, f.login(t, form).Code)
	assert.Equal(t, http.StatusOK, f.login(t, form).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.login(t, form).Code)
}

func TestLogout_ClearsSession(t *testing.T) {
	f := setupAuth(t, nil)

	w := f.login(t, url.Values{"username": {"testuser"}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, w.Code)
	ck := findCookie(w, "sessionid")
	require.NotNil(t, ck)
	require.Equal(t, 1, f.store.Len())

	req := httptest.NewRequest(http.MethodGet, "/logout/", nil)
	req.AddCookie(ck)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, 0, f.store.Len(), "no stored session keeps _auth_user_id")
	cleared := findCookie(w, "sessionid")
	require.NotNil(t, cleared)
	assert.True(t, cleared.MaxAge < 0)
}

func TestLogout_Anonymous(t *testing.T) {
	f := setupAuth(t, nil)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logout/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestShowLogin(t *testing.T) {
	f := setupAuth(t, nil)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts/login/?next=/2/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="username"`)
	assert.Contains(t, w.Body.String(), `value="/2/"`)
}
