package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/yourusername/complaint-tracker/internal/config"
	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
	"github.com/yourusername/complaint-tracker/internal/service"
)

// Context keys set by the session middleware
const (
	ContextSessionID = "session_id"
	ContextUser      = "user"
	ContextUserID    = "user_id"
)

const (
	cookieSessionIDKey = "sid"

	FlashError   = "error"
	FlashMessage = "message"
)

// SessionCookies reads and writes the signed session cookie. The cookie
// carries the session id and one-shot flash messages, nothing else.
type SessionCookies struct {
	store *sessions.CookieStore
	name  string
}

func NewSessionCookies(cfg config.SessionConfig) *SessionCookies {
	keyPairs := [][]byte{[]byte(cfg.Secret)}
	if cfg.EncryptionKey != "" {
		keyPairs = append(keyPairs, []byte(cfg.EncryptionKey))
	}
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		// Lax so the cookie rides along on the provider's redirect back
		SameSite: http.SameSiteLaxMode,
	}

	name := cfg.CookieName
	if name == "" {
		name = "complaint_session"
	}
	return &SessionCookies{store: store, name: name}
}

// cookie returns the decoded cookie. A tampered or stale cookie yields a
// fresh, empty one.
func (s *SessionCookies) cookie(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, s.name)
	if err != nil {
		log.Printf("[SessionCookies] discarding undecodable cookie: %v", err)
	}
	return sess
}

// SessionID returns the id carried by the request cookie, or ""
func (s *SessionCookies) SessionID(r *http.Request) string {
	id, _ := s.cookie(r).Values[cookieSessionIDKey].(string)
	return id
}

// SetSessionID points the cookie at a server-side session
func (s *SessionCookies) SetSessionID(w http.ResponseWriter, r *http.Request, id string) error {
	sess := s.cookie(r)
	sess.Values[cookieSessionIDKey] = id
	return sess.Save(r, w)
}

// Clear expires the cookie
func (s *SessionCookies) Clear(w http.ResponseWriter, r *http.Request) error {
	sess := s.cookie(r)
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// AddFlash queues a message for the next rendered page
func (s *SessionCookies) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) error {
	sess := s.cookie(r)
	sess.AddFlash(message, kind)
	return sess.Save(r, w)
}

// Flashes pops the queued messages of the given kinds
func (s *SessionCookies) Flashes(w http.ResponseWriter, r *http.Request, kinds ...string) map[string][]string {
	sess := s.cookie(r)
	out := make(map[string][]string)
	for _, kind := range kinds {
		for _, f := range sess.Flashes(kind) {
			if msg, ok := f.(string); ok {
				out[kind] = append(out[kind], msg)
			}
		}
	}
	if len(out) > 0 {
		if err := sess.Save(r, w); err != nil {
			log.Printf("[SessionCookies] failed to save cookie after reading flashes: %v", err)
		}
	}
	return out
}

// SessionMiddleware resolves the session cookie and guards protected routes
type SessionMiddleware struct {
	cookies  *SessionCookies
	sessions *service.SessionService
}

func NewSessionMiddleware(cookies *SessionCookies, sessions *service.SessionService) *SessionMiddleware {
	return &SessionMiddleware{cookies: cookies, sessions: sessions}
}

// LoadSession puts the id of a live server-side session into the context
func (m *SessionMiddleware) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := m.cookies.SessionID(c.Request); id != "" {
			if _, err := m.sessions.Load(c.Request.Context(), id); err == nil {
				c.Set(ContextSessionID, id)
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				log.Printf("[SessionMiddleware] failed to load session: %v", err)
			}
		}
		c.Next()
	}
}

// RequireAuth admits only sessions whose user still exists in the store.
// Browsers are sent to the login page; JSON clients get 401.
func (m *SessionMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.sessions.CurrentUser(c.Request.Context(), c.GetString(ContextSessionID))
		if err != nil {
			if !errors.Is(err, apperrors.ErrUnauthorized) {
				log.Printf("[SessionMiddleware] failed to resolve session user: %v", err)
			}
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthenticated"})
				return
			}
			_ = m.cookies.AddFlash(c.Writer, c.Request, FlashError, "Please sign in to continue")
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth
func (m *SessionMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthenticated"})
			return
		}
		if !user.IsAdmin() {
			log.Printf("[SessionMiddleware] user ID=%d denied admin access to %s", user.ID, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireAuth
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*entity.User)
	return user, ok && user != nil
}

// WantsJSON reports whether the client asked for a JSON answer
func WantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.ContentType(), "application/json")
}
