package entity

import "time"

// Session is the server-side record behind the session cookie.
// Username and UserID are both set once the visitor has authenticated.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	UserID    uint      `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether both identity attributes are present
func (s *Session) Authenticated() bool {
	return s != nil && s.Username != "" && s.UserID != 0
}

// Identity returns the authenticated identity, if any
func (s *Session) Identity() (Identity, bool) {
	if !s.Authenticated() {
		return Identity{}, false
	}
	return Identity{UserID: s.UserID, Username: s.Username}, true
}

// Identity is what protected routes learn about the caller
type Identity struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// PendingState is the anti-forgery token of an OAuth handshake in flight.
// At most one exists per session.
type PendingState struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}
