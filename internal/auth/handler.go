package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollsite/backend/internal/sessions"
	"github.com/pollsite/backend/internal/web"
	"github.com/pollsite/backend/pkg/metrics"
)

// LoginForm is the body for POST /accounts/login/.
type LoginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// Handler handles login and logout.
type Handler struct {
	repo        Repository
	sessions    *sessions.Manager
	limiter     *LoginLimiter
	redirectURL string
	logger      *zap.Logger
}

// NewHandler creates an auth handler. redirectURL is used when the form has no usable next.
func NewHandler(repo Repository, sm *sessions.Manager, limiter *LoginLimiter, redirectURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if redirectURL == "" {
		redirectURL = "/"
	}
	return &Handler{repo: repo, sessions: sm, limiter: limiter, redirectURL: redirectURL, logger: logger}
}

// ShowLogin handles GET /accounts/login/.
func (h *Handler) ShowLogin(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"next": c.Query("next")})
}

// Login handles POST /accounts/login/.
func (h *Handler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderLogin(c, http.StatusBadRequest, form, "Invalid form submission.")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(c.ClientIP()) {
		metrics.Logins.WithLabelValues("throttled").Inc()
		h.renderLogin(c, http.StatusTooManyRequests, form, "Too many login attempts. Try again later.")
		return
	}

	ctx := c.Request.Context()
	u, err := Authenticate(ctx, h.repo, form.Username, form.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		metrics.Logins.WithLabelValues("failure").Inc()
		h.renderLogin(c, http.StatusOK, form,
			"Please enter a correct username and password. Note that both fields may be case-sensitive.")
		return
	}
	if err != nil {
		h.logger.Error("authenticate", zap.Error(err))
		web.ServerError(c)
		return
	}

	s := sessions.FromContext(c)
	if s == nil {
		h.logger.Error("login without session middleware")
		web.ServerError(c)
		return
	}
	s, err = h.sessions.Rotate(c, s)
	if err != nil {
		h.logger.Error("rotate session", zap.Error(err))
		web.ServerError(c)
		return
	}
	s.Set(sessions.AuthUserIDKey, strconv.FormatInt(u.ID, 10))
	if err := h.sessions.Save(c, s); err != nil {
		h.logger.Error("save session", zap.Error(err))
		web.ServerError(c)
		return
	}
	if err := h.repo.UpdateLastLogin(ctx, u.ID, time.Now()); err != nil {
		h.logger.Warn("update last_login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	metrics.Logins.WithLabelValues("success").Inc()
	h.logger.Info("user logged in", zap.Int64("user_id", u.ID), zap.String("username", u.Username))

	c.Redirect(http.StatusFound, h.nextURL(form.Next))
}

// Logout handles GET and POST /logout/.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c, sessions.FromContext(c)); err != nil {
		h.logger.Error("destroy session", zap.Error(err))
		web.ServerError(c)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) renderLogin(c *gin.Context, status int, form LoginForm, msg string) {
	c.HTML(status, "login.html", gin.H{
		"username":      form.Username,
		"next":          form.Next,
		"error_message": msg,
	})
}

// nextURL accepts only local absolute paths so the form cannot redirect off-site.
// Browsers drop tab, CR and LF from Location, so "/\t/host" would become "//host".
func (h *Handler) nextURL(next string) string {
	if next == "" || strings.ContainsAny(next, "\t\r\n\\") {
		return h.redirectURL
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(next, "//") {
		return h.redirectURL
	}
	return next
}
