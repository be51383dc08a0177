package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/argon2"

	"github.com/keyxmakerx/findfirst/internal/apperror"
)

// Redis key prefixes for session data.
const (
	sessionKeyPrefix = "session:"
	refreshKeyPrefix = "refresh:"
)

// refreshTokenBytes is the number of random bytes in a refresh token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const refreshTokenBytes = 32

// argon2id parameters. These follow OWASP recommendations for argon2id:
// memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Password and username limits enforced at signup.
const (
	minPasswordLen = 4
	maxPasswordLen = 128
	maxEmailLen    = 255
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{2,50}$`)

// ErrUnauthenticated is returned when a credential is missing, malformed,
// expired or wrong. Callers can match it with errors.Is; the error handler
// renders it as 401.
var ErrUnauthenticated = apperror.NewUnauthorized("authentication required")

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch the repository directly.
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*User, error)
	Signin(ctx context.Context, username, password string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Signout(ctx context.Context, sessionID string) error

	// Authenticate checks a username/password pair without creating a session.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// ResolveToken validates an access token and its backing session.
	ResolveToken(ctx context.Context, token string) (*Principal, error)
}

// authService implements AuthService with argon2id hashing, JWT access
// tokens, and Redis sessions.
type authService struct {
	repo       UserRepository
	redis      *redis.Client
	tokens     *TokenIssuer
	sessionTTL time.Duration

	// dummyHash is verified against when the username is unknown so that
	// both failure paths cost the same argon2 computation.
	dummyHash string
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, rdb *redis.Client, tokens *TokenIssuer, sessionTTL time.Duration) AuthService {
	dummy, _ := hashPassword(uuid.NewString())
	return &authService{
		repo:       repo,
		redis:      rdb,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		dummyHash:  dummy,
	}
}

// Signup creates a new user account. It validates the input, checks
// uniqueness, hashes the password with argon2id, and persists the user.
func (s *authService) Signup(ctx context.Context, input SignupInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !usernamePattern.MatchString(username) {
		return nil, apperror.NewValidation("username must be 2-50 letters, digits, '.', '_' or '-'")
	}
	if len(email) > maxEmailLen {
		return nil, apperror.NewValidation("email is too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.NewValidation("email is not valid")
	}
	if len(input.Password) < minPasswordLen || len(input.Password) > maxPasswordLen {
		return nil, apperror.NewValidation(fmt.Sprintf("password must be %d-%d characters", minPasswordLen, maxPasswordLen))
	}

	// Check uniqueness before doing expensive hashing.
	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("checking username: %w", err))
	}
	if taken {
		return nil, apperror.NewConflict("username already taken")
	}
	taken, err = s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("checking email: %w", err))
	}
	if taken {
		return nil, apperror.NewConflict("an account with this email already exists")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperror.FromStorage(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user signed up",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Authenticate verifies a username and password. Unknown users and wrong
// passwords both yield ErrUnauthenticated; storage failures yield 503.
func (s *authService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if apperror.Is(err, apperror.TypeNotFound) {
		verifyPassword(password, s.dummyHash)
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, apperror.FromStorage(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(password, user.PasswordHash) {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// Signin authenticates the user, opens a session in Redis, and returns an
// access token bound to that session plus a refresh token.
func (s *authService) Signin(ctx context.Context, username, password string) (*Tokens, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("creating session: %w", err))
	}

	access, expiresAt, err := s.tokens.Issue(session)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	// Non-critical; a failed update must not block signin.
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user signed in",
		slog.Int64("user_id", user.ID),
		slog.String("session_id", session.ID),
	)

	return &Tokens{
		AccessToken:  access,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh issues a new access token for the session that owns refreshToken
// and extends the session's lifetime.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrUnauthenticated
	}

	sid, err := s.redis.Get(ctx, refreshKeyPrefix+refreshToken).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("reading refresh token: %w", err))
	}

	session, err := s.loadSession(ctx, sid)
	if err != nil {
		return nil, err
	}

	pipe := s.redis.TxPipeline()
	pipe.Expire(ctx, sessionKeyPrefix+sid, s.sessionTTL)
	pipe.Expire(ctx, refreshKeyPrefix+refreshToken, s.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("extending session: %w", err))
	}

	access, expiresAt, err := s.tokens.Issue(session)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Signout deletes the session and its refresh token. Signing out of a
// session that no longer exists is not an error.
func (s *authService) Signout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	session, err := s.loadSession(ctx, sessionID)
	if errors.Is(err, ErrUnauthenticated) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.redis.Del(ctx, sessionKeyPrefix+session.ID, refreshKeyPrefix+session.RefreshToken).Err(); err != nil {
		return apperror.NewStorageUnavailable(fmt.Errorf("deleting session: %w", err))
	}

	slog.Info("user signed out",
		slog.Int64("user_id", session.UserID),
		slog.String("session_id", session.ID),
	)
	return nil
}

// ResolveToken verifies an access token and checks that its session has not
// been revoked.
func (s *authService) ResolveToken(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		slog.Debug("rejecting access token", slog.Any("error", err))
		return nil, ErrUnauthenticated
	}

	session, err := s.loadSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.UserID {
		return nil, ErrUnauthenticated
	}

	return &Principal{
		UserID:    session.UserID,
		Username:  session.Username,
		SessionID: session.ID,
	}, nil
}

// loadSession reads a session from Redis. A missing session yields
// ErrUnauthenticated; a Redis failure yields 503.
func (s *authService) loadSession(ctx context.Context, sid string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKeyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, apperror.NewStorageUnavailable(fmt.Errorf("reading session from Redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}
	return &session, nil
}

// createSession stores a new session and its refresh token mapping in Redis
// with the configured TTL.
func (s *authService) createSession(ctx context.Context, user *User) (*Session, error) {
	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	session := &Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Username:     user.Username,
		RefreshToken: refresh,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, data, s.sessionTTL)
	pipe.Set(ctx, refreshKeyPrefix+refresh, session.ID, s.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("storing session in Redis: %w", err)
	}

	return session, nil
}

// --- Password Hashing (argon2id) ---

// HashPassword exposes argon2id hashing to the CLI's "user add" command.
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}

// hashPassword creates an argon2id hash of the given password. The output
// format is: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash)

	return encoded, nil
}

// verifyPassword checks a plaintext password against an argon2id hash string.
func verifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1
}

// generateRefreshToken creates a cryptographically random hex-encoded token.
func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
