package model

import (
	"encoding/json"
	"time"
)

// APIToken is a long-lived bearer credential bound to a user.
// The token value is returned exactly once at creation time.
type APIToken struct {
	// ID is the primary key (UUID v4); lookups by value go through a query
	ID string `json:"id"`
	// Token is the secret value ("tok_" + opaque)
	Token string `json:"token"`
	// UserID references User.ID
	UserID string `json:"userId"`
	// Username is denormalized for listings
	Username string `json:"username"`
	// Name is the human-readable label given at creation
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	// ExpiresAt is a Unix-seconds timestamp; 0 means the token never expires
	ExpiresAt int64 `json:"expiresAt"`
}

// IsValid reports whether the token is usable now.
func (t APIToken) IsValid() bool {
	if t.ID == "" || t.Token == "" || t.UserID == "" {
		return false
	}
	return t.ExpiresAt == 0 || time.Now().Unix() < t.ExpiresAt
}

// ExpirationDaysRemaining returns the days until expiry: 0 for tokens
// that never expire, negative once expired.
func (t APIToken) ExpirationDaysRemaining() float64 {
	if t.ExpiresAt == 0 {
		return 0
	}
	return float64(t.ExpiresAt-time.Now().Unix()) / 86400
}

func (t APIToken) ToJSON() string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	return string(data)
}

func APITokenFromJSON(data string) APIToken {
	var t APIToken
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return APIToken{}
	}
	return t
}
