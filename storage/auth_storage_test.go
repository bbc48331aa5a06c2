package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-platform/beacon/storage/model"
)

func authFixture(t *testing.T) *AuthStorage {
	t.Helper()
	manager, err := NewManager(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := NewAuthStorage(manager, "", AuthConfig{})
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	return auth
}

func TestInitializeBootstrapsAdmin(t *testing.T) {
	auth := authFixture(t)

	admin := auth.FindUserByUsername("admin")
	require.True(t, admin.IsValid())
	assert.True(t, admin.IsAdmin)
	assert.True(t, auth.SetupPending())

	// Empty password works until the forced change.
	assert.Equal(t, admin.ID, auth.ValidateCredentials("admin", ""))

	// Setting a password completes the setup.
	require.True(t, auth.UpdateUserPassword(admin.ID, "hunter22"))
	assert.False(t, auth.SetupPending())
	assert.Equal(t, "", auth.ValidateCredentials("admin", ""))
	assert.Equal(t, admin.ID, auth.ValidateCredentials("admin", "hunter22"))
}

func TestCreateUser(t *testing.T) {
	auth := authFixture(t)

	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)
	user := auth.FindUserByID(id)
	require.True(t, user.IsValid())
	assert.False(t, user.IsAdmin)

	_, err = auth.CreateUser("worker", "other", false)
	require.Error(t, err)
	_, conflict := err.(model.AlreadyExistsError)
	assert.True(t, conflict)

	_, err = auth.CreateUser("", "pw", false)
	assert.Error(t, err)

	// The initial-setup admin grant only applies to an empty store.
	id2, err := auth.CreateUser("late", "pw", true)
	require.NoError(t, err)
	assert.False(t, auth.FindUserByID(id2).IsAdmin)
}

func TestValidateCredentials(t *testing.T) {
	auth := authFixture(t)
	id, err := auth.CreateUser("worker", "secret", false)
	require.NoError(t, err)

	assert.Equal(t, id, auth.ValidateCredentials("worker", "secret"))
	assert.Equal(t, "", auth.ValidateCredentials("worker", "wrong"))
	assert.Equal(t, "", auth.ValidateCredentials("ghost", "secret"))
}

func TestSessionLifecycle(t *testing.T) {
	auth := authFixture(t)
	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)

	sessionID := auth.CreateSession(id)
	require.NotEmpty(t, sessionID)
	assert.Contains(t, sessionID, "sess_")

	assert.Equal(t, id, auth.ValidateSession(sessionID, "10.0.0.5"))
	assert.Equal(t, "", auth.ValidateSession("sess_bogus", "10.0.0.5"))

	// Validation slides the expiry forward.
	before := auth.FindSession(sessionID).ExpiresAt
	time.Sleep(1100 * time.Millisecond)
	auth.ValidateSession(sessionID, "10.0.0.5")
	assert.Greater(t, auth.FindSession(sessionID).ExpiresAt, before-1)

	assert.True(t, auth.DeleteSession(sessionID))
	assert.Equal(t, "", auth.ValidateSession(sessionID, "10.0.0.5"))
}

func TestExpiredSessionIsDropped(t *testing.T) {
	manager, err := NewManager(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := NewAuthStorage(manager, "", AuthConfig{SessionDuration: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)

	sessionID := auth.CreateSession(id)
	require.NotEmpty(t, sessionID)
	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, "", auth.ValidateSession(sessionID, "10.0.0.5"))
	// Deleted on sight, not just rejected.
	assert.Equal(t, "", auth.FindSession(sessionID).ID)
}

func TestAPITokens(t *testing.T) {
	auth := authFixture(t)
	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)

	token, err := auth.CreateAPIToken(id, "ci", 0)
	require.NoError(t, err)
	assert.Contains(t, token.Token, "tok_")
	assert.Zero(t, token.ExpiresAt)

	assert.Equal(t, id, auth.ValidateAPIToken(token.Token))
	assert.Equal(t, "", auth.ValidateAPIToken("tok_bogus"))

	tokens := auth.TokensForUser(id)
	require.Len(t, tokens, 1)
	assert.Equal(t, "ci", tokens[0].Name)

	assert.True(t, auth.DeleteAPIToken(token.ID))
	assert.Equal(t, "", auth.ValidateAPIToken(token.Token))

	_, err = auth.CreateAPIToken("missing-user", "x", 0)
	require.Error(t, err)
	_, notFound := err.(model.NotFoundError)
	assert.True(t, notFound)
}

func TestPageTokenBoundToIP(t *testing.T) {
	auth := authFixture(t)

	token := auth.CreatePageToken("192.168.1.10")
	require.NotEmpty(t, token)
	assert.Contains(t, token, "csrf_")

	assert.True(t, auth.ValidatePageToken(token, "192.168.1.10"))
	assert.False(t, auth.ValidatePageToken(token, "192.168.1.11"))
	assert.False(t, auth.ValidatePageToken("csrf_bogus", "192.168.1.10"))
}

func TestDeleteUserCascades(t *testing.T) {
	auth := authFixture(t)
	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)
	sessionID := auth.CreateSession(id)
	require.NotEmpty(t, sessionID)
	token, err := auth.CreateAPIToken(id, "ci", 0)
	require.NoError(t, err)

	require.True(t, auth.DeleteUser(id))
	assert.False(t, auth.FindUserByID(id).IsValid())
	assert.Equal(t, "", auth.ValidateSession(sessionID, "10.0.0.5"))
	assert.Equal(t, "", auth.ValidateAPIToken(token.Token))
}

func TestCleanupExpiredData(t *testing.T) {
	manager, err := NewManager(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	auth, err := NewAuthStorage(
		manager, "", AuthConfig{
			SessionDuration:   time.Millisecond,
			PageTokenDuration: time.Millisecond,
		},
	)
	require.NoError(t, err)
	require.NoError(t, auth.Initialize())
	id, err := auth.CreateUser("worker", "pw", false)
	require.NoError(t, err)

	require.NotEmpty(t, auth.CreateSession(id))
	require.NotEmpty(t, auth.CreatePageToken("10.0.0.5"))
	time.Sleep(1100 * time.Millisecond)

	assert.GreaterOrEqual(t, auth.CleanupExpiredData(), 2)
}
