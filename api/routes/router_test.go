package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	cartsvc "github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/catalog"
	"github.com/pawmart/storefront/internal/orders"
	"github.com/pawmart/storefront/internal/reviews"
	"github.com/pawmart/storefront/internal/session"
	"github.com/pawmart/storefront/internal/wishlist"
	"github.com/pawmart/storefront/pkg/config"
	"github.com/pawmart/storefront/pkg/logger"
)

type stubCart struct{}

func (stubCart) Lines() []cartsvc.Line     { return nil }
func (stubCart) Owner() session.Owner      { return session.Anonymous }
func (stubCart) TotalQuantity() int        { return 0 }
func (stubCart) Subtotal() decimal.Decimal { return decimal.Zero }
func (stubCart) Notice() (cartsvc.Notice, bool) {
	return cartsvc.Notice{}, false
}
func (stubCart) ClearNotice() {}

func (stubCart) Add(context.Context, cartsvc.Snapshot, int) cartsvc.Outcome {
	return cartsvc.Outcome{Kind: cartsvc.EventAdded}
}

func (stubCart) SetQuantity(context.Context, string, int) cartsvc.Outcome {
	return cartsvc.Outcome{Kind: cartsvc.EventUpdated}
}

func (stubCart) Remove(context.Context, string) cartsvc.Outcome {
	return cartsvc.Outcome{Kind: cartsvc.EventRemoved}
}

func (stubCart) Clear(context.Context) cartsvc.Outcome {
	return cartsvc.Outcome{Kind: cartsvc.EventCleared}
}

type stubMerger struct{}

func (stubMerger) Lines() []cartsvc.Line                             { return nil }
func (stubMerger) MergeRemote(context.Context, []cartsvc.Line) error { return nil }

type stubSession struct{}

func (stubSession) Current() session.Owner { return session.Anonymous }

func (stubSession) Login(context.Context, string, string) (session.Owner, error) {
	return session.Anonymous, nil
}

func (stubSession) Logout(context.Context) {}

type stubCatalog struct {
	panicOnList bool
}

func (s stubCatalog) List(context.Context, catalog.ListFilter) ([]catalog.Item, error) {
	if s.panicOnList {
		panic("catalog exploded")
	}
	return []catalog.Item{}, nil
}

func (stubCatalog) Get(context.Context, int64) (*catalog.Item, error) {
	return &catalog.Item{}, nil
}

func (stubCatalog) CartSnapshot(context.Context, int64) (cartsvc.Snapshot, error) {
	return cartsvc.Snapshot{}, nil
}

type stubWishlist struct{}

func (stubWishlist) List(context.Context) ([]wishlist.Entry, error) { return nil, nil }
func (stubWishlist) Add(context.Context, wishlist.Entry) error      { return nil }
func (stubWishlist) Remove(context.Context, string) error           { return nil }
func (stubWishlist) Contains(context.Context, string) bool          { return false }

func (stubWishlist) MoveToCart(context.Context, string, int) (cartsvc.Outcome, error) {
	return cartsvc.Outcome{Kind: cartsvc.EventAdded}, nil
}

type stubOrders struct{}

func (stubOrders) Checkout(context.Context, orders.CheckoutInput) (*orders.Order, error) {
	return &orders.Order{}, nil
}

func (stubOrders) History(context.Context) ([]orders.Order, error) { return nil, nil }
func (stubOrders) HasPurchased(context.Context, string) bool       { return false }

type stubReviews struct{}

func (stubReviews) Submit(context.Context, reviews.SubmitInput) (*reviews.Review, error) {
	return &reviews.Review{}, nil
}

func (stubReviews) List(context.Context, string) ([]reviews.Review, error) { return nil, nil }

func (stubReviews) Summarize(context.Context, string) (reviews.Summary, error) {
	return reviews.Summary{}, nil
}

func (stubReviews) CanReview(context.Context, string) bool { return false }

func newTestRouter(catalogSvc catalog.Service) http.Handler {
	return NewRouter(Deps{
		Config:   &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Cart:     stubCart{},
		Merger:   stubMerger{},
		Session:  stubSession{},
		Catalog:  catalogSvc,
		Wishlist: stubWishlist{},
		Orders:   stubOrders{},
		Reviews:  stubReviews{},
		Registry: prometheus.NewRegistry(),
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Errorf("%s: expected 200 got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Storefront-Env") != "test" {
			t.Errorf("%s: missing env header", path)
		}
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCartRouteWired(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"data"`) {
		t.Errorf("expected envelope, got %s", resp.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a generated request id header")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "carried-through")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Header().Get("X-Request-Id") != "carried-through" {
		t.Fatal("expected the inbound request id to be echoed")
	}
}

func TestPanicRecoveredAs500(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{panicOnList: true})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "internal server error") {
		t.Errorf("internal detail must not leak, got %s", resp.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	router := newTestRouter(stubCatalog{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}
