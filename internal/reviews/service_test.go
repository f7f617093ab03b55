package reviews

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
	"github.com/pawmart/storefront/pkg/types"
)

type memKV struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{values: map[string][]byte{}}
}

func (m *memKV) Get(_ context.Context, namespace, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.values[namespace+"/"+key]
	if !ok {
		return false, nil
	}
	return json.Unmarshal(payload, dest) == nil, nil
}

func (m *memKV) Put(_ context.Context, namespace, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[namespace+"/"+key] = payload
	return nil
}

func (m *memKV) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, namespace+"/"+key)
	return nil
}

func (m *memKV) Close() error { return nil }

type stubPurchases struct {
	purchased map[string]bool
}

func (s *stubPurchases) HasPurchased(_ context.Context, productID string) bool {
	return s.purchased[productID]
}

type stubIdentity struct {
	owner session.Owner
}

func (s *stubIdentity) Current() session.Owner { return s.owner }

type stubReviewAPI struct {
	comments  []backend.Comment
	fetchErr  error
	created   []backend.CreateCommentInput
	createErr error
}

func flexRating(v int) types.FlexInt {
	return types.FlexInt{Value: v, Present: true}
}

func (s *stubReviewAPI) FetchComments(context.Context, string) ([]backend.Comment, error) {
	return s.comments, s.fetchErr
}

func (s *stubReviewAPI) CreateComment(_ context.Context, input backend.CreateCommentInput) (*backend.Comment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, input)
	return &backend.Comment{ID: int64(len(s.created)), Status: backend.CommentStatusPending}, nil
}

func newTestService(t *testing.T, purchases *stubPurchases, identity *stubIdentity) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		KV:        newMemKV(),
		Purchases: purchases,
		Identity:  identity,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	out := svc.(*service)
	out.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }
	return out
}

func TestSubmitRequiresPurchase(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubPurchases{purchased: map[string]bool{}}, &stubIdentity{owner: session.Owner{UserID: "7"}})

	_, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 5})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if svc.CanReview(context.Background(), "41") {
		t.Error("CanReview must agree with Submit")
	}
}

func TestSubmitValidatesRating(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubPurchases{purchased: map[string]bool{"41": true}}, &stubIdentity{})
	for _, rating := range []int{0, 6, -1} {
		if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: rating}); err == nil {
			t.Errorf("rating %d should be rejected", rating)
		}
	}
}

func TestSubmitReplacesOwnReview(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Name: "Kira"}}
	svc := newTestService(t, purchases, identity)

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 2, Comment: "meh"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 5, Comment: "grew on us"}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.List(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("resubmitting must replace, got %d reviews", len(all))
	}
	if all[0].Rating != 5 || all[0].AuthorName != "Kira" {
		t.Errorf("expected the newer review, got %+v", all[0])
	}
}

func TestSummarizeAverages(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7"}}
	svc := newTestService(t, purchases, identity)

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 4}); err != nil {
		t.Fatal(err)
	}
	identity.owner = session.Owner{UserID: "8"}
	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 5}); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Summarize(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count != 2 {
		t.Errorf("expected 2 reviews, got %d", summary.Count)
	}
	if !summary.AverageRating.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("expected average 4.5, got %s", summary.AverageRating)
	}

	empty, err := svc.Summarize(context.Background(), "999")
	if err != nil {
		t.Fatal(err)
	}
	if empty.Count != 0 || !empty.AverageRating.Equal(decimal.Zero) {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

func TestSummarizeCountsMergedComments(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Name: "Kira"}}
	svc := newTestService(t, purchases, identity)
	svc.api = &stubReviewAPI{comments: []backend.Comment{{
		ID:        11,
		ProductID: "41",
		UserID:    "22",
		UserName:  "Moss",
		Rating:    flexRating(4),
		Comment:   "good wand",
		Status:    backend.CommentStatusApproved,
		CreatedAt: "2026-05-30T10:00:00Z",
	}}}

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 5}); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.Summarize(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Count != 2 {
		t.Fatalf("summary must count the same reviews the listing shows, got %d", summary.Count)
	}
	if !summary.AverageRating.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("expected average 4.5 across merged reviews, got %s", summary.AverageRating)
	}
}

func TestSubmitMirrorsToModerationQueue(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Name: "Kira", Email: "kira@example.com"}}
	svc := newTestService(t, purchases, identity)
	api := &stubReviewAPI{}
	svc.api = api

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 4, Comment: "solid"}); err != nil {
		t.Fatal(err)
	}
	if len(api.created) != 1 {
		t.Fatalf("expected the review mirrored once, got %d", len(api.created))
	}
	if api.created[0].ProductID != 41 || api.created[0].UserEmail != "kira@example.com" {
		t.Errorf("unexpected mirror payload %+v", api.created[0])
	}
}

func TestSubmitMirrorFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7"}}
	svc := newTestService(t, purchases, identity)
	svc.api = &stubReviewAPI{createErr: context.DeadlineExceeded}

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 4}); err != nil {
		t.Fatalf("a dead moderation queue must not block the review, got %v", err)
	}
	all, err := svc.List(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected the local review to survive, got %+v", all)
	}
}

func TestListMergesApprovedComments(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Name: "Kira"}}
	svc := newTestService(t, purchases, identity)
	api := &stubReviewAPI{comments: []backend.Comment{
		{
			ID:        10,
			ProductID: "41",
			UserID:    "7",
			UserName:  "Kira",
			Rating:    flexRating(3),
			Comment:   "the mirrored copy, superseded locally",
			Status:    backend.CommentStatusApproved,
		},
		{
			ID:        11,
			ProductID: "41",
			UserID:    "22",
			UserName:  "Moss",
			Rating:    flexRating(4),
			Comment:   "good wand",
			Status:    backend.CommentStatusApproved,
			CreatedAt: "2026-05-30T10:00:00Z",
		},
		{
			ID:        12,
			ProductID: "99",
			UserID:    "23",
			UserName:  "Ivy",
			Rating:    flexRating(5),
			Comment:   "wrong product",
			Status:    backend.CommentStatusApproved,
		},
	}}
	svc.api = api

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 5, Comment: "our own"}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.List(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected local review plus one merged comment, got %+v", all)
	}
	for _, review := range all {
		if review.OwnerID == "7" && review.Rating != 5 {
			t.Errorf("local review must win over its mirrored copy, got %+v", review)
		}
		if review.OwnerID == "22" && review.AuthorName != "Moss" {
			t.Errorf("expected the merged comment, got %+v", review)
		}
	}
}

func TestListRemoteFailureKeepsLocalReviews(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	svc := newTestService(t, purchases, &stubIdentity{owner: session.Owner{UserID: "7"}})
	svc.api = &stubReviewAPI{fetchErr: context.DeadlineExceeded}

	if _, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 4}); err != nil {
		t.Fatal(err)
	}
	all, err := svc.List(context.Background(), "41")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected local reviews to survive a dead backend, got %+v", all)
	}
}

func TestGuestAuthorName(t *testing.T) {
	t.Parallel()

	purchases := &stubPurchases{purchased: map[string]bool{"41": true}}
	svc := newTestService(t, purchases, &stubIdentity{})

	review, err := svc.Submit(context.Background(), SubmitInput{ProductID: "41", Rating: 3})
	if err != nil {
		t.Fatal(err)
	}
	if review.AuthorName != "Guest" {
		t.Errorf("expected Guest author, got %q", review.AuthorName)
	}
}
