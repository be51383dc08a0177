// Package auth handles user accounts, sessions, and identity resolution for
// FindFirst. Every /api request passes through the Resolver, which turns the
// request's credential (token cookie, bearer token or HTTP basic auth) into a
// Principal or rejects it. There is no anonymous fallback.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"time"
)

// User represents a registered FindFirst user.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Principal is the authenticated caller of a single request. It is built by
// the Resolver and handed explicitly to every service method; it is never
// stored anywhere that outlives the request.
type Principal struct {
	UserID   int64
	Username string

	// SessionID is empty when the caller authenticated with basic auth.
	SessionID string
}

// --- Request DTOs (bound from HTTP requests) ---

// SignupRequest holds the JSON body of POST /user/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- Service Input DTOs (passed from handler to service) ---

// SignupInput is the validated input for creating a new user.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// --- Sessions & tokens ---

// Session represents a signed-in session stored in Redis under
// "session:<id>". The access token carries the session ID, so deleting the
// session revokes every token issued for it.
type Session struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tokens is returned by signin and refresh.
type Tokens struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
