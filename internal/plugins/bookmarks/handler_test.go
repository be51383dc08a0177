package bookmarks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
)

// newTestServer mounts the bookmark routes under /api, authenticating every
// request as p. A nil p puts RequireAuth in front instead.
func newTestServer(repo *mockBookmarkRepo, p *auth.Principal) *echo.Echo {
	svc, _ := newTestBookmarkService(repo, nil)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		_ = c.JSON(apperror.SafeCode(err), map[string]string{"message": apperror.SafeMessage(err)})
	}

	// An empty resolver chain rejects every request.
	authenticate := auth.RequireAuth(auth.NewResolver())
	if p != nil {
		authenticate = func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
				return next(c)
			}
		}
	}
	api := e.Group("/api", authenticate)
	RegisterRoutes(api, NewHandler(svc))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func searchRepo(gotTitles *[]string) *mockBookmarkRepo {
	return &mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			*gotTitles = titles
			return []Bookmark{{ID: 1, OwnerID: ownerID, Title: "Go", URL: "https://go.dev"}}, nil
		},
	}
}

func TestSearchHandler_JSONBody(t *testing.T) {
	var titles []string
	e := newTestServer(searchRepo(&titles), jsmith)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks/search", strings.NewReader(`{"tags":["work","news"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body []Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body) != 1 || body[0].Title != "Go" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if strings.Join(titles, ",") != "work,news" {
		t.Errorf("unexpected titles %v", titles)
	}
}

func TestSearchHandler_QueryParams(t *testing.T) {
	var titles []string
	e := newTestServer(searchRepo(&titles), jsmith)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/bookmarks/search?tags=work&tags=news", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Join(titles, ",") != "work,news" {
		t.Errorf("unexpected titles %v", titles)
	}
}

func TestSearchHandler_EmptyTagsIs400(t *testing.T) {
	e := newTestServer(&mockBookmarkRepo{}, jsmith)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks/search", strings.NewReader(`{"tags":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := serve(e, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSearchHandler_MalformedJSONIs400(t *testing.T) {
	e := newTestServer(&mockBookmarkRepo{}, jsmith)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks/search", strings.NewReader(`{"tags":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if rec := serve(e, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSearchHandler_AnonymousIs401(t *testing.T) {
	var titles []string
	e := newTestServer(searchRepo(&titles), nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/bookmarks/search?tags=work", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if titles != nil {
		t.Error("storage must not be queried for an anonymous request")
	}
}

func TestGetHandler_InvalidID(t *testing.T) {
	e := newTestServer(&mockBookmarkRepo{}, jsmith)
	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/bookmark/abc", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateHandler_Returns201(t *testing.T) {
	var saved *Bookmark
	e := newTestServer(&mockBookmarkRepo{
		createFn: func(ctx context.Context, b *Bookmark, tagIDs []int64) error {
			b.ID = 4
			saved = b
			return nil
		},
		findByIDFn: func(ctx context.Context, ownerID, id int64) (*Bookmark, error) {
			return saved, nil
		},
	}, jsmith)

	req := httptest.NewRequest(http.MethodPost, "/api/bookmark", strings.NewReader(`{"title":"Go","url":"https://go.dev"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(e, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"createdBy":"jsmith"`) {
		t.Errorf("expected audit fields in body, got %s", rec.Body.String())
	}
}

func TestDeleteHandler_Returns204(t *testing.T) {
	e := newTestServer(&mockBookmarkRepo{}, jsmith)
	if rec := serve(e, httptest.NewRequest(http.MethodDelete, "/api/bookmark/3", nil)); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestSearchByTitleHandler(t *testing.T) {
	var keywords []string
	e := newTestServer(&mockBookmarkRepo{
		findByKeywordsFn: func(ctx context.Context, ownerID int64, kw []string) ([]Bookmark, error) {
			keywords = kw
			return []Bookmark{{ID: 1, OwnerID: ownerID, Title: "Go", URL: "https://go.dev"}}, nil
		},
	}, jsmith)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/bookmarks/search/title?keywords=go,docs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Join(keywords, ",") != "go,docs" {
		t.Errorf("unexpected keywords %v", keywords)
	}

	if rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/bookmarks/search/title", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing keywords: expected 400, got %d", rec.Code)
	}
}
