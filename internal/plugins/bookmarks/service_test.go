package bookmarks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/keyxmakerx/findfirst/internal/apperror"
	"github.com/keyxmakerx/findfirst/internal/observability"
	"github.com/keyxmakerx/findfirst/internal/plugins/auth"
	"github.com/keyxmakerx/findfirst/internal/plugins/tags"
)

// --- Mocks ---

type mockBookmarkRepo struct {
	listByOwnerFn     func(ctx context.Context, ownerID int64) ([]Bookmark, error)
	findByIDFn        func(ctx context.Context, ownerID, id int64) (*Bookmark, error)
	findByTagTitlesFn func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error)
	findByKeywordsFn  func(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error)
	createFn          func(ctx context.Context, b *Bookmark, tagIDs []int64) error
	updateFn          func(ctx context.Context, b *Bookmark) error
	deleteFn          func(ctx context.Context, ownerID, id int64) error
	deleteAllFn       func(ctx context.Context, ownerID int64) (int64, error)
}

func (m *mockBookmarkRepo) ListByOwner(ctx context.Context, ownerID int64) ([]Bookmark, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return []Bookmark{}, nil
}

func (m *mockBookmarkRepo) FindByID(ctx context.Context, ownerID, id int64) (*Bookmark, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, ownerID, id)
	}
	return nil, apperror.NewNotFound("bookmark not found")
}

func (m *mockBookmarkRepo) FindByTagTitles(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
	if m.findByTagTitlesFn != nil {
		return m.findByTagTitlesFn(ctx, ownerID, titles)
	}
	return []Bookmark{}, nil
}

func (m *mockBookmarkRepo) FindByTitleKeywords(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error) {
	if m.findByKeywordsFn != nil {
		return m.findByKeywordsFn(ctx, ownerID, keywords)
	}
	return []Bookmark{}, nil
}

func (m *mockBookmarkRepo) Create(ctx context.Context, b *Bookmark, tagIDs []int64) error {
	if m.createFn != nil {
		return m.createFn(ctx, b, tagIDs)
	}
	b.ID = 1
	return nil
}

func (m *mockBookmarkRepo) Update(ctx context.Context, b *Bookmark) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, b)
	}
	return nil
}

func (m *mockBookmarkRepo) Delete(ctx context.Context, ownerID, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

func (m *mockBookmarkRepo) DeleteAllByOwner(ctx context.Context, ownerID int64) (int64, error) {
	if m.deleteAllFn != nil {
		return m.deleteAllFn(ctx, ownerID)
	}
	return 0, nil
}

// mockTagService stubs the parts of tags.TagService bookmarks depend on.
type mockTagService struct {
	tags.TagService

	validateOwnershipFn func(ctx context.Context, p *auth.Principal, ids []int64) error
	getOrCreateFn       func(ctx context.Context, p *auth.Principal, title string) (*tags.Tag, error)
	attachFn            func(ctx context.Context, bookmarkID, tagID int64) error
	detachFn            func(ctx context.Context, bookmarkID, tagID int64) error
	batchFn             func(ctx context.Context, bookmarkIDs []int64) (map[int64][]tags.Tag, error)
}

func (m *mockTagService) ValidateOwnership(ctx context.Context, p *auth.Principal, ids []int64) error {
	if m.validateOwnershipFn != nil {
		return m.validateOwnershipFn(ctx, p, ids)
	}
	return nil
}

func (m *mockTagService) GetOrCreate(ctx context.Context, p *auth.Principal, title string) (*tags.Tag, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, p, title)
	}
	return &tags.Tag{ID: 1, OwnerID: p.UserID, Title: title}, nil
}

func (m *mockTagService) Attach(ctx context.Context, bookmarkID, tagID int64) error {
	if m.attachFn != nil {
		return m.attachFn(ctx, bookmarkID, tagID)
	}
	return nil
}

func (m *mockTagService) Detach(ctx context.Context, bookmarkID, tagID int64) error {
	if m.detachFn != nil {
		return m.detachFn(ctx, bookmarkID, tagID)
	}
	return nil
}

func (m *mockTagService) GetBookmarkTagsBatch(ctx context.Context, bookmarkIDs []int64) (map[int64][]tags.Tag, error) {
	if m.batchFn != nil {
		return m.batchFn(ctx, bookmarkIDs)
	}
	return map[int64][]tags.Tag{}, nil
}

type fakeRecorder struct {
	actions []string
}

func (f *fakeRecorder) Record(ctx context.Context, p *auth.Principal, action, resourceType string, resourceID int64, resourceName string, details map[string]any) {
	f.actions = append(f.actions, action)
}

// --- Helpers ---

var (
	jsmith = &auth.Principal{UserID: 7, Username: "jsmith", SessionID: "sid"}
	other  = int64(8)
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestBookmarkService(repo *mockBookmarkRepo, tagSvc *mockTagService) (*bookmarkService, *fakeRecorder) {
	if tagSvc == nil {
		tagSvc = &mockTagService{}
	}
	rec := &fakeRecorder{}
	svc := NewBookmarkService(repo, tagSvc, rec).(*bookmarkService)
	svc.now = func() time.Time { return fixedNow }
	return svc, rec
}

// storedBookmark is a FindByID stub returning one bookmark owned by ownerID.
func storedBookmark(ownerID int64) func(ctx context.Context, o, id int64) (*Bookmark, error) {
	return func(ctx context.Context, o, id int64) (*Bookmark, error) {
		if o != ownerID {
			return nil, apperror.NewNotFound("bookmark not found")
		}
		return &Bookmark{ID: id, OwnerID: ownerID, Title: "Go", URL: "https://go.dev"}, nil
	}
}

func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func ids(bookmarks []Bookmark) []int64 {
	out := make([]int64, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = b.ID
	}
	return out
}

// --- Search ---

func TestSearch_FiltersDedupesAndSorts(t *testing.T) {
	var gotTitles []string
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			gotTitles = titles
			return []Bookmark{
				{ID: 5, OwnerID: 7},
				{ID: 2, OwnerID: 7},
				{ID: 4, OwnerID: other},
				{ID: 5, OwnerID: 7},
				{ID: 3, OwnerID: 7},
			}, nil
		},
	}, nil)

	result, err := svc.Search(context.Background(), jsmith, SearchRequest{Tags: []string{"work", "news", "work"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ids(result)
	want := []int64{2, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if strings.Join(gotTitles, ",") != "work,news" {
		t.Errorf("expected de-duplicated titles, got %v", gotTitles)
	}
}

func TestSearch_AttachesFullTagLists(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			return []Bookmark{{ID: 1, OwnerID: 7}, {ID: 2, OwnerID: 7}}, nil
		},
	}, &mockTagService{
		batchFn: func(ctx context.Context, bookmarkIDs []int64) (map[int64][]tags.Tag, error) {
			return map[int64][]tags.Tag{1: {{ID: 1, Title: "work"}, {ID: 2, Title: "news"}}}, nil
		},
	})

	result, err := svc.Search(context.Background(), jsmith, SearchRequest{Tags: []string{"work"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result[0].Tags) != 2 {
		t.Errorf("expected both tags on bookmark 1, got %+v", result[0].Tags)
	}
	if result[1].Tags == nil || len(result[1].Tags) != 0 {
		t.Errorf("expected empty non-nil tags on bookmark 2, got %#v", result[1].Tags)
	}
}

func TestSearch_NoMatchesIsEmpty(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{}, nil)
	result, err := svc.Search(context.Background(), jsmith, SearchRequest{Tags: []string{"nothing"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", result)
	}
}

func TestSearch_Unauthenticated(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			t.Error("storage must not be touched without a principal")
			return nil, nil
		},
	}, nil)

	_, err := svc.Search(context.Background(), nil, SearchRequest{Tags: []string{"work"}})
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestSearch_EmptyRequestRejected(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{}, nil)
	before := testutil.ToFloat64(observability.TagSearchesTotal.WithLabelValues("invalid"))

	_, err := svc.Search(context.Background(), jsmith, SearchRequest{})
	assertAppError(t, err, http.StatusBadRequest)

	if got := testutil.ToFloat64(observability.TagSearchesTotal.WithLabelValues("invalid")) - before; got != 1 {
		t.Errorf("expected invalid counter to grow by 1, got %v", got)
	}
}

func TestSearch_StorageUnavailable(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}, nil)
	before := testutil.ToFloat64(observability.TagSearchesTotal.WithLabelValues("unavailable"))

	_, err := svc.Search(context.Background(), jsmith, SearchRequest{Tags: []string{"work"}})
	assertAppError(t, err, http.StatusServiceUnavailable)

	if got := testutil.ToFloat64(observability.TagSearchesTotal.WithLabelValues("unavailable")) - before; got != 1 {
		t.Errorf("expected unavailable counter to grow by 1, got %v", got)
	}
}

func TestSearch_NormalizesTagsLikeStorage(t *testing.T) {
	var gotTitles []string
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByTagTitlesFn: func(ctx context.Context, ownerID int64, titles []string) ([]Bookmark, error) {
			gotTitles = titles
			return []Bookmark{}, nil
		},
	}, nil)

	tags := make([]string, MaxSearchTags+1)
	for i := range tags {
		tags[i] = " work"
	}
	if _, err := svc.Search(context.Background(), jsmith, SearchRequest{Tags: tags}); err != nil {
		t.Fatalf("repeated tags under the distinct cap: unexpected error %v", err)
	}
	if strings.Join(gotTitles, ",") != "work" {
		t.Errorf("expected [work], got %q", gotTitles)
	}
}

// --- Title search ---

func TestSearchByTitle_FiltersDedupesAndSorts(t *testing.T) {
	var gotKeywords []string
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByKeywordsFn: func(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error) {
			gotKeywords = keywords
			return []Bookmark{
				{ID: 9, OwnerID: 7, Title: "Go docs"},
				{ID: 4, OwnerID: other, Title: "Go at work"},
				{ID: 2, OwnerID: 7, Title: "Postgres"},
				{ID: 9, OwnerID: 7, Title: "Go docs"},
			}, nil
		},
	}, nil)

	result, err := svc.SearchByTitle(context.Background(), jsmith, []string{"go, postgres", "GO"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ids(result)
	if len(got) != 2 || got[0] != 2 || got[1] != 9 {
		t.Errorf("expected [2 9], got %v", got)
	}
	if strings.Join(gotKeywords, ",") != "go,postgres" {
		t.Errorf("expected go,postgres, got %v", gotKeywords)
	}
	if result[0].Tags == nil {
		t.Error("expected tag lists to be attached")
	}
}

func TestSearchByTitle_Rejections(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByKeywordsFn: func(ctx context.Context, ownerID int64, keywords []string) ([]Bookmark, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}, nil)
	ctx := context.Background()

	_, err := svc.SearchByTitle(ctx, nil, []string{"go"})
	assertAppError(t, err, http.StatusUnauthorized)

	_, err = svc.SearchByTitle(ctx, jsmith, []string{" , "})
	assertAppError(t, err, http.StatusBadRequest)

	before := testutil.ToFloat64(observability.TitleSearchesTotal.WithLabelValues("unavailable"))
	_, err = svc.SearchByTitle(ctx, jsmith, []string{"go"})
	assertAppError(t, err, http.StatusServiceUnavailable)
	if got := testutil.ToFloat64(observability.TitleSearchesTotal.WithLabelValues("unavailable")) - before; got != 1 {
		t.Errorf("expected unavailable counter to grow by 1, got %v", got)
	}
}

// --- CRUD ---

func TestCreate_StampsAuditAndRecords(t *testing.T) {
	var saved *Bookmark
	var savedTags []int64
	svc, rec := newTestBookmarkService(&mockBookmarkRepo{
		createFn: func(ctx context.Context, b *Bookmark, tagIDs []int64) error {
			saved = b
			savedTags = tagIDs
			b.ID = 12
			return nil
		},
		findByIDFn: storedBookmark(7),
	}, nil)

	b, err := svc.Create(context.Background(), jsmith, CreateInput{
		Title:  "  <b>Go</b> ",
		URL:    "https://go.dev",
		TagIDs: []int64{3, 3, 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID != 12 {
		t.Errorf("expected id 12, got %d", b.ID)
	}
	if saved.Title != "Go" || saved.OwnerID != 7 {
		t.Errorf("unexpected saved bookmark %+v", saved)
	}
	if saved.CreatedBy == nil || *saved.CreatedBy != "jsmith" || !saved.CreatedDate.Equal(fixedNow) {
		t.Errorf("expected audit stamp, got %+v", saved.Fields)
	}
	if len(savedTags) != 2 {
		t.Errorf("expected de-duplicated tag ids, got %v", savedTags)
	}
	if len(rec.actions) != 1 {
		t.Errorf("expected one activity entry, got %v", rec.actions)
	}
}

func TestCreate_ForeignTagRejected(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		createFn: func(ctx context.Context, b *Bookmark, tagIDs []int64) error {
			t.Error("create must not run with foreign tags")
			return nil
		},
	}, &mockTagService{
		validateOwnershipFn: func(ctx context.Context, p *auth.Principal, ids []int64) error {
			return apperror.NewBadRequest("one or more tags do not exist")
		},
	})

	_, err := svc.Create(context.Background(), jsmith, CreateInput{Title: "Go", URL: "https://go.dev", TagIDs: []int64{99}})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		url     string
		wantErr bool
	}{
		{"valid", "Go", "https://go.dev/doc", false},
		{"http ok", "Go", "http://example.com", false},
		{"blank title", "  ", "https://go.dev", true},
		{"markup only title", "<b></b>", "https://go.dev", true},
		{"long title", strings.Repeat("x", MaxTitleLength+1), "https://go.dev", true},
		{"missing url", "Go", "", true},
		{"relative url", "Go", "/doc", true},
		{"javascript url", "Go", "javascript:alert(1)", true},
		{"ftp url", "Go", "ftp://example.com", true},
		{"long url", "Go", "https://example.com/" + strings.Repeat("a", MaxURLLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := validateFields(tt.title, tt.url, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFields() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGet_OtherUsersBookmarkIsNotFound(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{findByIDFn: storedBookmark(other)}, nil)
	_, err := svc.Get(context.Background(), jsmith, 1)
	assertAppError(t, err, http.StatusNotFound)
}

func TestUpdate_StampsModification(t *testing.T) {
	var updated *Bookmark
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{
		findByIDFn: storedBookmark(7),
		updateFn: func(ctx context.Context, b *Bookmark) error {
			updated = b
			return nil
		},
	}, nil)

	_, err := svc.Update(context.Background(), jsmith, 3, UpdateInput{Title: "Go docs", URL: "https://go.dev/doc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Title != "Go docs" || updated.URL != "https://go.dev/doc" {
		t.Errorf("unexpected update %+v", updated)
	}
	if updated.LastModifiedBy == nil || *updated.LastModifiedBy != "jsmith" || !updated.LastModifiedDate.Equal(fixedNow) {
		t.Errorf("expected modification stamp, got %+v", updated.Fields)
	}
}

func TestDeleteAll_ReturnsCount(t *testing.T) {
	svc, rec := newTestBookmarkService(&mockBookmarkRepo{
		deleteAllFn: func(ctx context.Context, ownerID int64) (int64, error) {
			if ownerID != 7 {
				t.Errorf("expected owner 7, got %d", ownerID)
			}
			return 3, nil
		},
	}, nil)

	n, err := svc.DeleteAll(context.Background(), jsmith)
	if err != nil || n != 3 {
		t.Errorf("expected 3 deleted, got %d, %v", n, err)
	}
	if len(rec.actions) != 1 {
		t.Errorf("expected one activity entry, got %v", rec.actions)
	}
}

func TestAddTag_RequiresOwnedBookmark(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{findByIDFn: storedBookmark(other)}, &mockTagService{
		getOrCreateFn: func(ctx context.Context, p *auth.Principal, title string) (*tags.Tag, error) {
			t.Error("tag must not be created for a foreign bookmark")
			return nil, nil
		},
	})

	_, err := svc.AddTag(context.Background(), jsmith, 1, "work")
	assertAppError(t, err, http.StatusNotFound)
}

func TestAddTag_AttachesResolvedTag(t *testing.T) {
	var attached [2]int64
	svc, rec := newTestBookmarkService(&mockBookmarkRepo{findByIDFn: storedBookmark(7)}, &mockTagService{
		getOrCreateFn: func(ctx context.Context, p *auth.Principal, title string) (*tags.Tag, error) {
			return &tags.Tag{ID: 4, OwnerID: p.UserID, Title: title}, nil
		},
		attachFn: func(ctx context.Context, bookmarkID, tagID int64) error {
			attached = [2]int64{bookmarkID, tagID}
			return nil
		},
	})

	tag, err := svc.AddTag(context.Background(), jsmith, 9, "work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Title != "work" || attached != [2]int64{9, 4} {
		t.Errorf("unexpected attach %v for tag %+v", attached, tag)
	}
	if len(rec.actions) != 1 {
		t.Errorf("expected one activity entry, got %v", rec.actions)
	}
}

func TestNilPrincipalRejectedEverywhere(t *testing.T) {
	svc, _ := newTestBookmarkService(&mockBookmarkRepo{}, nil)
	ctx := context.Background()

	_, err := svc.List(ctx, nil)
	assertAppError(t, err, http.StatusUnauthorized)
	_, err = svc.Get(ctx, nil, 1)
	assertAppError(t, err, http.StatusUnauthorized)
	_, err = svc.Create(ctx, nil, CreateInput{Title: "Go", URL: "https://go.dev"})
	assertAppError(t, err, http.StatusUnauthorized)
	_, err = svc.DeleteAll(ctx, nil)
	assertAppError(t, err, http.StatusUnauthorized)
	assertAppError(t, svc.Delete(ctx, nil, 1), http.StatusUnauthorized)
	assertAppError(t, svc.RemoveTag(ctx, nil, 1, 2), http.StatusUnauthorized)
}
