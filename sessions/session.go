package sessions

import "time"

// Session is the server-side record behind an opaque session cookie.
type Session struct {
	Token     string    `json:"token"`      // Opaque random token, the cookie value
	UserID    string    `json:"user_id"`    // Owner of the session
	Remember  bool      `json:"remember"`   // Created with "remember me"
	CreatedAt time.Time `json:"created_at"` // When the session was created
	ExpiresAt time.Time `json:"expires_at"` // Absolute expiry
}

// ExpiredAt reports whether the session is no longer valid at now. A session
// is expired from the instant ExpiresAt is reached.
func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// MaxAge is the cookie Max-Age in seconds for the remaining lifetime.
func (s Session) MaxAge(now time.Time) int {
	secs := int(s.ExpiresAt.Sub(now) / time.Second)
	if secs < 1 {
		return -1
	}
	return secs
}
