package model

import (
	"encoding/json"
)

// User represents a platform account. The first user created during
// bootstrap is the admin; all later users are regular accounts.
type User struct {
	// ID is the primary key (UUID v4)
	ID string `json:"id"`
	// Username is the unique login name
	Username string `json:"username"`
	// PasswordHash stores a self-describing pbkdf2 hash string
	PasswordHash string `json:"passwordHash"`
	// Salt is the hex-encoded random salt the hash was derived with
	Salt string `json:"salt"`
	// IsAdmin marks the bootstrap account
	IsAdmin bool `json:"isAdmin"`
	// CreatedAt is a Unix-seconds timestamp
	CreatedAt int64 `json:"createdAt"`
}

// IsValid reports whether the record carries all required fields.
func (u User) IsValid() bool {
	return u.ID != "" && u.Username != "" && u.PasswordHash != ""
}

// ToJSON serializes the record for the byte store.
func (u User) ToJSON() string {
	data, err := json.Marshal(u)
	if err != nil {
		return ""
	}
	return string(data)
}

// UserFromJSON parses a stored record; returns the zero User on bad input.
func UserFromJSON(data string) User {
	var u User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return User{}
	}
	return u
}

// PublicUser is the API-facing view of a User without credential material.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
	CreatedAt int64  `json:"createdAt"`
}

// Public strips credential material for API responses.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}
