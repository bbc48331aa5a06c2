package storage

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/beacon-platform/beacon/internal/cryptoutil"
	"github.com/beacon-platform/beacon/storage/model"
)

// Collection names used by the auth subsystem.
const (
	UsersCollection      = "users"
	SessionsCollection   = "sessions"
	APITokensCollection  = "api_tokens"
	PageTokensCollection = "page_tokens"
	ConfigCollection     = "config"
)

const (
	sessionTokenLength   = 32
	apiTokenLength       = 32
	pageTokenLength      = 24
	setupPendingKey      = "initial_setup"
	defaultAdminUsername = "admin"
)

// AuthConfig tunes the auth subsystem. Zero durations fall back to the
// platform defaults (24h sessions, 30m page tokens).
type AuthConfig struct {
	SessionDuration   time.Duration `yaml:"-"`
	PageTokenDuration time.Duration `yaml:"-"`
}

func (c *AuthConfig) applyDefaults() {
	if c.SessionDuration == 0 {
		c.SessionDuration = 24 * time.Hour
	}
	if c.PageTokenDuration == 0 {
		c.PageTokenDuration = 30 * time.Minute
	}
}

// AuthStorage provides the domain operations over users, sessions, API
// tokens and page tokens. All records live in the manager's byte store
// under a fixed driver, replaced whole on every mutation.
type AuthStorage struct {
	manager    *Manager
	driverName string
	cfg        AuthConfig
}

// NewAuthStorage binds the auth collections to a driver of the manager.
// An empty driverName selects the default driver.
func NewAuthStorage(manager *Manager, driverName string, cfg AuthConfig) (*AuthStorage, error) {
	cfg.applyDefaults()
	if manager.Driver(driverName) == nil {
		return nil, errors.Errorf("auth: driver '%s' not registered", driverName)
	}
	return &AuthStorage{
		manager:    manager,
		driverName: driverName,
		cfg:        cfg,
	}, nil
}

func (a *AuthStorage) driver() Driver {
	return a.manager.Driver(a.driverName)
}

func (a *AuthStorage) query(collection string) *QueryBuilder {
	return NewQuery(a.driver(), collection)
}

// SessionDuration returns the configured sliding session lifetime.
func (a *AuthStorage) SessionDuration() time.Duration {
	return a.cfg.SessionDuration
}

// PageTokenDuration returns the configured CSRF token lifetime.
func (a *AuthStorage) PageTokenDuration() time.Duration {
	return a.cfg.PageTokenDuration
}

// Initialize bootstraps the default admin account when no users exist
// and sweeps expired records once.
func (a *AuthStorage) Initialize() error {
	if len(a.driver().ListKeys(UsersCollection)) == 0 {
		id, err := a.CreateUser(defaultAdminUsername, "", true)
		if err != nil {
			return errors.Wrap(err, "auth: bootstrap admin")
		}
		// Empty password marks the account for the forced first-login
		// password change.
		flag := model.NewConfigItem(setupPendingKey, "pending")
		flag.ID = cryptoutil.NewUUID()
		a.driver().Store(ConfigCollection, setupPendingKey, flag.ToJSON())
		log.WithField("userId", id).Info("created default admin user")
	}
	removed := a.CleanupExpiredData()
	if removed > 0 {
		log.WithField("removed", removed).Debug("cleaned up expired auth records")
	}
	return nil
}

// SetupPending reports whether the forced initial password change has
// not happened yet.
func (a *AuthStorage) SetupPending() bool {
	return a.driver().Exists(ConfigCollection, setupPendingKey)
}

// CompleteSetup clears the initial-setup flag.
func (a *AuthStorage) CompleteSetup() {
	a.driver().Remove(ConfigCollection, setupPendingKey)
}

// CreateUser creates a user with a fresh salt and PBKDF2 hash. The
// admin flag is granted only when isInitialSetup is set and the store
// holds no users yet.
func (a *AuthStorage) CreateUser(username, password string, isInitialSetup bool) (string, error) {
	if username == "" {
		return "", errors.New("auth: username is required")
	}
	if existing := a.FindUserByUsername(username); existing.IsValid() {
		return "", model.AlreadyExistsErrorFmt("user '%s' already exists", username)
	}
	isAdmin := isInitialSetup && len(a.driver().ListKeys(UsersCollection)) == 0

	salt := cryptoutil.GenerateSalt()
	hash := cryptoutil.HashPassword(password, salt)
	if salt == "" || hash == "" {
		return "", errors.New("auth: password hashing failed")
	}
	user := model.User{
		ID:           cryptoutil.NewUUID(),
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now().Unix(),
	}
	if !a.driver().Store(UsersCollection, user.ID, user.ToJSON()) {
		return "", errors.New("auth: failed to store user")
	}
	log.WithFields(log.Fields{"username": username, "userId": user.ID, "admin": isAdmin}).
		Info("created user")
	return user.ID, nil
}

// FindUserByID returns the user record, or the zero User.
func (a *AuthStorage) FindUserByID(userID string) model.User {
	if userID == "" {
		return model.User{}
	}
	return model.UserFromJSON(a.driver().Retrieve(UsersCollection, userID))
}

// FindUserByUsername looks a user up through the query builder.
func (a *AuthStorage) FindUserByUsername(username string) model.User {
	if username == "" {
		return model.User{}
	}
	return model.UserFromJSON(a.query(UsersCollection).Where("username", username).Get())
}

// AllUsers returns every valid user record.
func (a *AuthStorage) AllUsers() []model.User {
	var users []model.User
	for _, data := range a.query(UsersCollection).GetAll() {
		if u := model.UserFromJSON(data); u.IsValid() {
			users = append(users, u)
		}
	}
	return users
}

// UpdateUserPassword regenerates the salt and hash for a user. Also
// clears the initial-setup flag when the default admin sets a password.
func (a *AuthStorage) UpdateUserPassword(userID, newPassword string) bool {
	user := a.FindUserByID(userID)
	if !user.IsValid() {
		return false
	}
	user.Salt = cryptoutil.GenerateSalt()
	user.PasswordHash = cryptoutil.HashPassword(newPassword, user.Salt)
	if user.Salt == "" || user.PasswordHash == "" {
		return false
	}
	if !a.driver().Store(UsersCollection, userID, user.ToJSON()) {
		return false
	}
	if user.IsAdmin && a.SetupPending() {
		a.CompleteSetup()
	}
	log.WithField("userId", userID).Info("updated user password")
	return true
}

// DeleteUser removes a user and cascades to its sessions and API
// tokens.
func (a *AuthStorage) DeleteUser(userID string) bool {
	if userID == "" {
		return false
	}
	if !a.driver().Remove(UsersCollection, userID) {
		return false
	}
	a.query(SessionsCollection).Where("userId", userID).Remove()
	a.query(APITokensCollection).Where("userId", userID).Remove()
	log.WithField("userId", userID).Info("deleted user")
	return true
}

// ValidateCredentials returns the user ID on success, "" otherwise.
// The hash is always checked through the same code path so failures do
// not reveal whether the username exists.
func (a *AuthStorage) ValidateCredentials(username, password string) string {
	user := a.FindUserByUsername(username)
	if !user.IsValid() {
		// Burn a verification round against a throwaway hash.
		cryptoutil.VerifyPassword(password, cryptoutil.HashPassword("", cryptoutil.GenerateSalt()))
		return ""
	}
	if !cryptoutil.VerifyPassword(password, user.PasswordHash) {
		return ""
	}
	return user.ID
}

// CreateSession issues a new session for the user.
func (a *AuthStorage) CreateSession(userID string) string {
	user := a.FindUserByID(userID)
	if !user.IsValid() {
		return ""
	}
	now := time.Now()
	session := model.Session{
		ID:        "sess_" + cryptoutil.RandomToken(sessionTokenLength),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(a.cfg.SessionDuration).Unix(),
	}
	if !a.driver().Store(SessionsCollection, session.ID, session.ToJSON()) {
		return ""
	}
	return session.ID
}

// FindSession returns the raw session record, valid or not.
func (a *AuthStorage) FindSession(sessionID string) model.Session {
	if sessionID == "" {
		return model.Session{}
	}
	return model.SessionFromJSON(a.driver().Retrieve(SessionsCollection, sessionID))
}

// ValidateSession checks a session and slides its expiry forward.
// Expired sessions are deleted on sight. clientIP is logged only;
// sessions are not bound to an address.
func (a *AuthStorage) ValidateSession(sessionID, clientIP string) string {
	session := a.FindSession(sessionID)
	if !session.IsValid() {
		if session.ID != "" {
			a.DeleteSession(sessionID)
			log.WithFields(log.Fields{"sessionId": sessionID, "clientIp": clientIP}).
				Debug("dropped expired session")
		}
		return ""
	}
	session.ExpiresAt = time.Now().Add(a.cfg.SessionDuration).Unix()
	a.driver().Store(SessionsCollection, sessionID, session.ToJSON())
	return session.UserID
}

// DeleteSession removes a session (logout or expiry).
func (a *AuthStorage) DeleteSession(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	return a.driver().Remove(SessionsCollection, sessionID)
}

// CreateAPIToken issues a new bearer token for the user. expireInDays
// of 0 means the token never expires. The token value is only available
// in the returned record.
func (a *AuthStorage) CreateAPIToken(userID, name string, expireInDays int) (model.APIToken, error) {
	user := a.FindUserByID(userID)
	if !user.IsValid() {
		return model.APIToken{}, model.NotFoundErrorFmt("user '%s' not found", userID)
	}
	now := time.Now()
	var expiresAt int64
	if expireInDays > 0 {
		expiresAt = now.AddDate(0, 0, expireInDays).Unix()
	}
	token := model.APIToken{
		ID:        cryptoutil.NewUUID(),
		Token:     "tok_" + cryptoutil.RandomToken(apiTokenLength),
		UserID:    user.ID,
		Username:  user.Username,
		Name:      name,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt,
	}
	if !a.driver().Store(APITokensCollection, token.ID, token.ToJSON()) {
		return model.APIToken{}, errors.New("auth: failed to store token")
	}
	return token, nil
}

// FindAPITokenByID returns a token record by primary key.
func (a *AuthStorage) FindAPITokenByID(id string) model.APIToken {
	if id == "" {
		return model.APIToken{}
	}
	return model.APITokenFromJSON(a.driver().Retrieve(APITokensCollection, id))
}

// TokensForUser lists a user's API tokens.
func (a *AuthStorage) TokensForUser(userID string) []model.APIToken {
	var tokens []model.APIToken
	for _, data := range a.query(APITokensCollection).Where("userId", userID).GetAll() {
		if t := model.APITokenFromJSON(data); t.ID != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// DeleteAPIToken removes a token by primary key.
func (a *AuthStorage) DeleteAPIToken(id string) bool {
	if id == "" {
		return false
	}
	return a.driver().Remove(APITokensCollection, id)
}

// ValidateAPIToken finds a token by its secret value and returns the
// owning user ID. Expired tokens are deleted on sight.
func (a *AuthStorage) ValidateAPIToken(tokenValue string) string {
	if tokenValue == "" {
		return ""
	}
	data := a.query(APITokensCollection).Where("token", tokenValue).Get()
	if data == "" {
		return ""
	}
	token := model.APITokenFromJSON(data)
	if !token.IsValid() {
		if token.ID != "" {
			a.DeleteAPIToken(token.ID)
		}
		return ""
	}
	return token.UserID
}

// CreatePageToken issues a CSRF token bound to the client's IP.
func (a *AuthStorage) CreatePageToken(clientIP string) string {
	now := time.Now()
	token := model.PageToken{
		ID:        cryptoutil.NewUUID(),
		Token:     "csrf_" + cryptoutil.RandomToken(pageTokenLength),
		ClientIP:  clientIP,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(a.cfg.PageTokenDuration).Unix(),
	}
	if !a.driver().Store(PageTokensCollection, token.ID, token.ToJSON()) {
		return ""
	}
	return token.Token
}

// ValidatePageToken checks a CSRF token. The issuing IP must match the
// presenting IP exactly.
func (a *AuthStorage) ValidatePageToken(tokenValue, clientIP string) bool {
	if tokenValue == "" {
		return false
	}
	data := a.query(PageTokensCollection).Where("token", tokenValue).Get()
	if data == "" {
		return false
	}
	token := model.PageTokenFromJSON(data)
	if !token.IsValid() {
		a.driver().Remove(PageTokensCollection, token.ID)
		return false
	}
	if token.ClientIP != clientIP {
		log.WithFields(log.Fields{"issuedTo": token.ClientIP, "presentedBy": clientIP}).
			Warn("page token presented from a different address")
		return false
	}
	return true
}

// CleanupExpiredData sweeps sessions, API tokens and page tokens and
// deletes every expired record. Returns the number removed.
func (a *AuthStorage) CleanupExpiredData() int {
	removed := 0
	for _, collection := range []string{SessionsCollection, APITokensCollection, PageTokensCollection} {
		for _, key := range a.driver().ListKeys(collection) {
			data := a.driver().Retrieve(collection, key)
			if data == "" {
				continue
			}
			expired := false
			switch collection {
			case SessionsCollection:
				expired = !model.SessionFromJSON(data).IsValid()
			case APITokensCollection:
				expired = !model.APITokenFromJSON(data).IsValid()
			case PageTokensCollection:
				expired = !model.PageTokenFromJSON(data).IsValid()
			}
			if expired && a.driver().Remove(collection, key) {
				removed++
			}
		}
	}
	return removed
}
