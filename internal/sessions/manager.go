package sessions

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const contextKey = "session"

var errInvalidToken = errors.New("invalid session token")

// Options configures the session cookie.
type Options struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads sessions from the request cookie and writes them back.
type Manager struct {
	store  Store
	secret []byte
	cookie string
	ttl    time.Duration
	secure bool
	logger *zap.Logger
}

// NewManager creates a session manager.
func NewManager(store Store, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "sessionid"
	}
	if opts.TTL <= 0 {
		opts.TTL = 14 * 24 * time.Hour
	}
	return &Manager{
		store:  store,
		secret: []byte(opts.Secret),
		cookie: opts.CookieName,
		ttl:    opts.TTL,
		secure: opts.Secure,
		logger: logger,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookie }

// Middleware attaches the request's session to the gin context. Requests
// without a valid cookie get a fresh session that is only stored on Save.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextKey, m.load(c))
		c.Next()
	}
}

func (m *Manager) load(c *gin.Context) *Session {
	token, err := c.Cookie(m.cookie)
	if err != nil || token == "" {
		return New(m.ttl)
	}
	id, err := m.parse(token)
	if err != nil {
		return New(m.ttl)
	}
	s, err := m.store.Load(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			m.logger.Warn("session load failed", zap.Error(err))
		}
		return New(m.ttl)
	}
	return s
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

// Save stores the session and sets the cookie.
func (m *Manager) Save(c *gin.Context, s *Session) error {
	if err := m.store.Save(c.Request.Context(), s); err != nil {
		return err
	}
	s.isNew = false
	token, err := m.sign(s)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, token, int(time.Until(s.Expiry).Seconds()), "/", "", m.secure, true)
	return nil
}

// Rotate moves the session's values to a new id and drops the old one.
// Called on login so a session id seen before authentication is never reused.
func (m *Manager) Rotate(c *gin.Context, s *Session) (*Session, error) {
	if !s.isNew {
		if err := m.store.Delete(c.Request.Context(), s.ID); err != nil {
			return nil, err
		}
	}
	rotated := New(m.ttl)
	for k, v := range s.Values {
		rotated.Values[k] = v
	}
	c.Set(contextKey, rotated)
	return rotated, nil
}

// Destroy deletes the session from the store and expires the cookie.
// The context gets a fresh empty session.
func (m *Manager) Destroy(c *gin.Context, s *Session) error {
	if s != nil && !s.isNew {
		if err := m.store.Delete(c.Request.Context(), s.ID); err != nil {
			return err
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookie, "", -1, "/", "", m.secure, true)
	c.Set(contextKey, New(m.ttl))
	return nil
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(s.Expiry),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return "", errInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return "", errInvalidToken
	}
	return claims.ID, nil
}
