package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testSession() *Session {
	return &Session{ID: "sid-1", UserID: 7, Username: "jsmith"}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, expiresAt, err := issuer.Issue(testSession())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expected future expiry, got %v", expiresAt)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "jsmith" || claims.UserID != 7 || claims.SessionID != "sid-1" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer(testSecret, time.Hour).Issue(testSession())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenIssuer("another-secret-another-secret-xx", time.Hour).Verify(token); err == nil {
		t.Error("expected signature mismatch")
	}
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue(testSession())
	if err != nil {
		t.Fatal(err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		UserID:    7,
		SessionID: "sid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "jsmith",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenIssuer(testSecret, time.Hour).Verify(token); err == nil {
		t.Error("expected HS512 token to be rejected")
	}
}

func TestTokenIssuer_RequiresIdentityClaims(t *testing.T) {
	token, _, err := NewTokenIssuer(testSecret, time.Hour).Issue(&Session{ID: "", UserID: 7, Username: "jsmith"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenIssuer(testSecret, time.Hour).Verify(token); err == nil {
		t.Error("expected token without session id to be rejected")
	}
}
