package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/keyxmakerx/findfirst/internal/observability"
)

// TokenCookieName is the cookie carrying the access token.
const TokenCookieName = "token"

// Decision is a credential resolver's vote.
type Decision int

const (
	// Yes means the credential is valid; the chain stops with a principal.
	Yes Decision = iota

	// No means a credential is present but invalid; the request is rejected.
	No

	// Abstain means the resolver found no credential of its kind.
	Abstain
)

// Result carries the outcome of one resolver. Err is set when the resolver
// could not decide because a backing store failed.
type Result struct {
	Decision  Decision
	Principal *Principal
	Err       error
}

// CredentialResolver turns one kind of request credential into a vote.
type CredentialResolver interface {
	// Name labels the credential source in metrics ("cookie", "bearer", ...).
	Name() string
	Resolve(ctx context.Context, r *http.Request) Result
}

// TokenVerifier validates access tokens. Implemented by AuthService.
type TokenVerifier interface {
	ResolveToken(ctx context.Context, token string) (*Principal, error)
}

// PasswordVerifier checks username/password pairs. Implemented by AuthService.
type PasswordVerifier interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

// Resolver runs credential resolvers in order and stops on the first Yes or
// No. When every resolver abstains the request is unauthenticated; there is
// no anonymous principal.
type Resolver struct {
	resolvers []CredentialResolver
}

// NewResolver builds a resolver chain evaluated left to right.
func NewResolver(resolvers ...CredentialResolver) *Resolver {
	return &Resolver{resolvers: resolvers}
}

// NewDefaultResolver wires the standard chain: token cookie, bearer token,
// then HTTP basic auth.
func NewDefaultResolver(svc AuthService) *Resolver {
	return NewResolver(
		CookieResolver{Tokens: svc},
		BearerResolver{Tokens: svc},
		BasicResolver{Passwords: svc},
	)
}

// Resolve returns the request's principal, ErrUnauthenticated, or a storage
// error (503) when identity could not be checked.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Principal, error) {
	for _, cr := range r.resolvers {
		res := cr.Resolve(ctx, req)
		switch {
		case res.Err != nil:
			observability.AuthResolutionsTotal.WithLabelValues(cr.Name(), "error").Inc()
			return nil, res.Err
		case res.Decision == Yes && res.Principal != nil:
			observability.AuthResolutionsTotal.WithLabelValues(cr.Name(), "yes").Inc()
			return res.Principal, nil
		case res.Decision == Abstain:
			continue
		default:
			observability.AuthResolutionsTotal.WithLabelValues(cr.Name(), "no").Inc()
			return nil, ErrUnauthenticated
		}
	}

	observability.AuthResolutionsTotal.WithLabelValues("none", "no").Inc()
	return nil, ErrUnauthenticated
}

// verdict converts a verifier's (principal, error) pair into a Result.
func verdict(p *Principal, err error) Result {
	switch {
	case err == nil:
		return Result{Decision: Yes, Principal: p}
	case errors.Is(err, ErrUnauthenticated):
		return Result{Decision: No}
	default:
		return Result{Decision: No, Err: err}
	}
}

// CookieResolver reads the access token from the "token" cookie.
type CookieResolver struct {
	Tokens TokenVerifier
}

// Name implements CredentialResolver.
func (CookieResolver) Name() string { return "cookie" }

// Resolve implements CredentialResolver.
func (cr CookieResolver) Resolve(ctx context.Context, r *http.Request) Result {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return Result{Decision: Abstain}
	}
	return verdict(cr.Tokens.ResolveToken(ctx, cookie.Value))
}

// BearerResolver reads the access token from "Authorization: Bearer".
type BearerResolver struct {
	Tokens TokenVerifier
}

// Name implements CredentialResolver.
func (BearerResolver) Name() string { return "bearer" }

// Resolve implements CredentialResolver.
func (br BearerResolver) Resolve(ctx context.Context, r *http.Request) Result {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return Result{Decision: Abstain}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Decision: No}
	}
	return verdict(br.Tokens.ResolveToken(ctx, token))
}

// BasicResolver checks "Authorization: Basic" credentials against the user
// store. The resulting principal has no session. Routes using it should sit
// behind LimitBasicAttempts.
type BasicResolver struct {
	Passwords PasswordVerifier
}

// Name implements CredentialResolver.
func (BasicResolver) Name() string { return "basic" }

// Resolve implements CredentialResolver.
func (br BasicResolver) Resolve(ctx context.Context, r *http.Request) Result {
	if !hasBasicCredentials(r) {
		return Result{Decision: Abstain}
	}

	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		return Result{Decision: No}
	}

	user, err := br.Passwords.Authenticate(ctx, username, password)
	if err != nil {
		return verdict(nil, err)
	}
	return Result{Decision: Yes, Principal: &Principal{UserID: user.ID, Username: user.Username}}
}
