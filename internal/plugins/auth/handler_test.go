package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/apperror"
)

// newTestServer wires the /user routes and a protected whoami route onto a
// fresh Echo instance backed by a real service with miniredis.
func newTestServer(t *testing.T, repo *mockUserRepo) *echo.Echo {
	t.Helper()
	svc, _ := newTestAuthService(t, repo)
	resolver := NewDefaultResolver(svc)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		_ = c.JSON(apperror.SafeCode(err), map[string]string{"message": apperror.SafeMessage(err)})
	}

	RegisterRoutes(e, NewHandler(svc, resolver, false))
	e.GET("/api/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, GetPrincipal(c).Username)
	}, RequireAuth(resolver))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == TokenCookieName {
			return c
		}
	}
	return nil
}

func TestSigninHandler_SetsCookie(t *testing.T) {
	e := newTestServer(t, userRepoWith(t, "jsmith", "test"))

	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth("jsmith", "test")
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body Tokens
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		t.Errorf("expected tokens in body, got %s", rec.Body.String())
	}

	cookie := tokenCookie(rec)
	if cookie == nil {
		t.Fatal("expected token cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Errorf("unexpected cookie attributes %+v", cookie)
	}
	if cookie.Value != body.AccessToken {
		t.Error("cookie and body tokens differ")
	}

	// The cookie alone authenticates subsequent requests.
	whoami := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	whoami.AddCookie(cookie)
	rec = serve(e, whoami)
	if rec.Code != http.StatusOK || rec.Body.String() != "jsmith" {
		t.Errorf("expected 200 jsmith, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSigninHandler_Rejects(t *testing.T) {
	e := newTestServer(t, userRepoWith(t, "jsmith", "test"))

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/user/signin", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate challenge")
	}

	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth("jsmith", "wrong")
	rec = serve(e, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}
	if tokenCookie(rec) != nil {
		t.Error("no cookie expected on failed signin")
	}
}

func TestRequireAuth_Unauthenticated(t *testing.T) {
	e := newTestServer(t, &mockUserRepo{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/whoami", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}

	// A stale cookie is rejected and cleared.
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "stale"})
	rec = serve(e, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if c := tokenCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected cookie to be cleared, got %+v", c)
	}
}

func TestSignoutHandler_RevokesCookie(t *testing.T) {
	e := newTestServer(t, userRepoWith(t, "jsmith", "test"))

	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth("jsmith", "test")
	cookie := tokenCookie(serve(e, req))
	if cookie == nil {
		t.Fatal("expected token cookie")
	}

	out := httptest.NewRequest(http.MethodPost, "/user/signout", nil)
	out.AddCookie(cookie)
	if rec := serve(e, out); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	whoami := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	whoami.AddCookie(cookie)
	if rec := serve(e, whoami); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after signout, got %d", rec.Code)
	}
}

func TestRefreshHandler(t *testing.T) {
	e := newTestServer(t, userRepoWith(t, "jsmith", "test"))

	req := httptest.NewRequest(http.MethodPost, "/user/signin", nil)
	req.SetBasicAuth("jsmith", "test")
	var tokens Tokens
	if err := json.Unmarshal(serve(e, req).Body.Bytes(), &tokens); err != nil {
		t.Fatal(err)
	}

	rec := serve(e, httptest.NewRequest(http.MethodPost, "/user/refreshToken?token="+tokens.RefreshToken, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if tokenCookie(rec) == nil {
		t.Error("expected refreshed token cookie")
	}

	rec = serve(e, httptest.NewRequest(http.MethodPost, "/user/refreshToken", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing token: expected 400, got %d", rec.Code)
	}
}

func TestSignupHandler(t *testing.T) {
	e := newTestServer(t, &mockUserRepo{})

	body := `{"username":"jsmith","email":"jsmith@example.com","password":"test"}`
	req := httptest.NewRequest(http.MethodPost, "/user/signup", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "argon2") || strings.Contains(rec.Body.String(), "password") {
		t.Errorf("password hash leaked: %s", rec.Body.String())
	}
}
