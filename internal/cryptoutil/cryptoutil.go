package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// PBKDF2Iterations is the iteration count used for newly hashed passwords.
const PBKDF2Iterations = 10000

const (
	saltBytes = 16
	keyBytes  = 32
)

// RandomToken returns a random base62 string of the given length.
func RandomToken(length int) string {
	if length <= 0 {
		return ""
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	out := make([]byte, length)
	for i, b := range raw {
		out[i] = base62Alphabet[int(b)%len(base62Alphabet)]
	}
	return string(out)
}

// GenerateSalt returns a fresh random salt, hex encoded.
func GenerateSalt() string {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	return hex.EncodeToString(raw)
}

// NewUUID returns a random UUID v4 string.
func NewUUID() string {
	return uuid.NewString()
}

// HashPassword derives a PBKDF2-SHA256 hash of password with the given
// hex-encoded salt. The result is self-describing:
// pbkdf2$<iterations>$<saltHex>$<hashHex>
func HashPassword(password, salt string) string {
	saltRaw, err := hex.DecodeString(salt)
	if err != nil || len(saltRaw) == 0 {
		return ""
	}
	dk := pbkdf2.Key([]byte(password), saltRaw, PBKDF2Iterations, keyBytes, sha256.New)
	return fmt.Sprintf("pbkdf2$%d$%s$%s", PBKDF2Iterations, salt, hex.EncodeToString(dk))
}

// VerifyPassword checks password against a stored pbkdf2 hash string.
// Hashes in any other format (including legacy schemes) never verify.
func VerifyPassword(password, stored string) bool {
	iterations, saltRaw, want, err := parseHash(stored)
	if err != nil {
		return false
	}
	dk := pbkdf2.Key([]byte(password), saltRaw, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(dk, want) == 1
}

// IsPBKDF2Hash reports whether stored parses as a pbkdf2 hash string.
// Records carrying anything else require a password reset.
func IsPBKDF2Hash(stored string) bool {
	_, _, _, err := parseHash(stored)
	return err == nil
}

func parseHash(stored string) (iterations int, salt, hash []byte, err error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2" {
		return 0, nil, nil, errors.Errorf("unsupported password hash format")
	}
	iterations, err = strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, errors.Errorf("invalid iteration count")
	}
	salt, err = hex.DecodeString(parts[2])
	if err != nil {
		return 0, nil, nil, errors.Wrap(err, "invalid salt encoding")
	}
	hash, err = hex.DecodeString(parts[3])
	if err != nil {
		return 0, nil, nil, errors.Wrap(err, "invalid hash encoding")
	}
	if len(salt) == 0 || len(hash) == 0 {
		return 0, nil, nil, errors.Errorf("empty salt or hash")
	}
	return iterations, salt, hash, nil
}
