package model

import (
	"encoding/json"
	"time"
)

// Session is a server-issued login bound to a user, presented in the
// session cookie. Expiry slides forward on every successful validation.
type Session struct {
	// ID is the cookie value ("sess_" + token) and the storage key
	ID string `json:"id"`
	// UserID references User.ID
	UserID string `json:"userId"`
	// Username is denormalized for template rendering
	Username  string `json:"username"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// IsValid reports whether the session exists and has not expired.
func (s Session) IsValid() bool {
	if s.ID == "" || s.UserID == "" {
		return false
	}
	return time.Now().Unix() < s.ExpiresAt
}

func (s Session) ToJSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

func SessionFromJSON(data string) Session {
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Session{}
	}
	return s
}
