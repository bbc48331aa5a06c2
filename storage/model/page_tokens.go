package model

import (
	"encoding/json"
	"time"
)

// PageToken is a short-lived CSRF token embedded in rendered HTML and
// bound to the IP it was issued to.
type PageToken struct {
	// ID is the primary key (UUID v4)
	ID string `json:"id"`
	// Token is the value embedded in the page ("csrf_" + opaque)
	Token string `json:"token"`
	// ClientIP is the address the token was issued to; validation
	// requires an exact match
	ClientIP  string `json:"clientIp"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// IsValid reports whether the token exists and has not expired.
func (t PageToken) IsValid() bool {
	if t.ID == "" || t.Token == "" {
		return false
	}
	return time.Now().Unix() < t.ExpiresAt
}

func (t PageToken) ToJSON() string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(data)
}

func PageTokenFromJSON(data string) PageToken {
	var t PageToken
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return PageToken{}
	}
	return t
}
