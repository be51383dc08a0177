package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyxmakerx/findfirst/internal/apperror"
)

// stubVerifier implements TokenVerifier and PasswordVerifier.
type stubVerifier struct {
	resolveTokenFn func(ctx context.Context, token string) (*Principal, error)
	authenticateFn func(ctx context.Context, username, password string) (*User, error)
}

func (s *stubVerifier) ResolveToken(ctx context.Context, token string) (*Principal, error) {
	if s.resolveTokenFn != nil {
		return s.resolveTokenFn(ctx, token)
	}
	return nil, ErrUnauthenticated
}

func (s *stubVerifier) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if s.authenticateFn != nil {
		return s.authenticateFn(ctx, username, password)
	}
	return nil, ErrUnauthenticated
}

func newStubResolver(v *stubVerifier) *Resolver {
	return NewResolver(CookieResolver{Tokens: v}, BearerResolver{Tokens: v}, BasicResolver{Passwords: v})
}

func acceptToken(want string) func(context.Context, string) (*Principal, error) {
	return func(ctx context.Context, token string) (*Principal, error) {
		if token != want {
			return nil, ErrUnauthenticated
		}
		return &Principal{UserID: 7, Username: "jsmith", SessionID: "sid-1"}, nil
	}
}

func TestResolver_NoCredential(t *testing.T) {
	r := newStubResolver(&stubVerifier{})
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)

	p, err := r.Resolve(context.Background(), req)
	if p != nil || !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v, %v", p, err)
	}
}

func TestResolver_Cookie(t *testing.T) {
	r := newStubResolver(&stubVerifier{resolveTokenFn: acceptToken("good")})
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "good"})

	p, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Username != "jsmith" {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestResolver_Bearer(t *testing.T) {
	r := newStubResolver(&stubVerifier{resolveTokenFn: acceptToken("good")})
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.Header.Set("Authorization", "Bearer good")

	if _, err := r.Resolve(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolver_InvalidCookieDoesNotFallThrough(t *testing.T) {
	v := &stubVerifier{
		resolveTokenFn: acceptToken("good"),
		authenticateFn: func(ctx context.Context, username, password string) (*User, error) {
			t.Error("basic auth must not be consulted after a No")
			return &User{ID: 7, Username: username}, nil
		},
	}
	r := newStubResolver(v)
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "stale"})
	req.SetBasicAuth("jsmith", "test")

	if _, err := r.Resolve(context.Background(), req); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolver_Basic(t *testing.T) {
	v := &stubVerifier{
		authenticateFn: func(ctx context.Context, username, password string) (*User, error) {
			if username == "jsmith" && password == "test" {
				return &User{ID: 7, Username: "jsmith"}, nil
			}
			return nil, ErrUnauthenticated
		},
	}
	r := newStubResolver(v)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.SetBasicAuth("jsmith", "test")
	p, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != 7 || p.SessionID != "" {
		t.Errorf("unexpected principal %+v", p)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.SetBasicAuth("jsmith", "wrong")
	if _, err := r.Resolve(context.Background(), req); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolver_MalformedHeaders(t *testing.T) {
	r := newStubResolver(&stubVerifier{resolveTokenFn: acceptToken("good")})

	for _, h := range []string{"Bearer ", "Basic !!!notbase64", "Digest abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
		req.Header.Set("Authorization", h)
		if p, err := r.Resolve(context.Background(), req); p != nil || !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("header %q: expected ErrUnauthenticated, got %v, %v", h, p, err)
		}
	}
}

func TestResolver_StorageFailureSurfaces(t *testing.T) {
	v := &stubVerifier{
		resolveTokenFn: func(ctx context.Context, token string) (*Principal, error) {
			return nil, apperror.NewStorageUnavailable(errors.New("redis: connection refused"))
		},
	}
	r := newStubResolver(v)
	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "good"})

	_, err := r.Resolve(context.Background(), req)
	if !apperror.Is(err, apperror.TypeStorageUnavailable) {
		t.Errorf("expected storage_unavailable, got %v", err)
	}
}
