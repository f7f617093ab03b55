package orders

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cart"
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

type stubCart struct {
	lines   []cart.Line
	cleared int
}

func (s *stubCart) Lines() []cart.Line { return s.lines }

func (s *stubCart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (s *stubCart) Clear(context.Context) cart.Outcome {
	s.cleared++
	s.lines = nil
	return cart.Outcome{Kind: cart.EventCleared}
}

type stubOrderAPI struct {
	err        error
	calls      []backend.CreateOrderInput
	nextID     int64
	records    []backend.OrderRecord
	historyErr error
}

func (s *stubOrderAPI) CreateOrder(_ context.Context, input backend.CreateOrderInput) (*backend.CreateOrderResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, input)
	s.nextID++
	return &backend.CreateOrderResult{OrderID: s.nextID, Message: "order placed"}, nil
}

func (s *stubOrderAPI) FetchOrderHistory(context.Context, string) ([]backend.OrderRecord, error) {
	return s.records, s.historyErr
}

type stubIdentity struct {
	owner session.Owner
}

func (s *stubIdentity) Current() session.Owner { return s.owner }

func validPayment() Payment {
	return Payment{
		CardNumber: "4242 4242 4242 4242",
		HolderName: "Kira Vance",
		ExpMonth:   12,
		ExpYear:    2031,
		CVC:        "123",
	}
}

func cartLines() []cart.Line {
	return []cart.Line{
		{ProductID: "41", Name: "Salmon Crunch Treats", UnitPrice: decimal.RequireFromString("12.99"), Quantity: 2},
		{ProductID: "77", Name: "Feather Wand", UnitPrice: decimal.RequireFromString("6.25"), Quantity: 1},
	}
}

func newTestService(t *testing.T, kv *memKV, cartStub *stubCart, api orderAPI, identity *stubIdentity) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		KV:       kv,
		Cart:     cartStub,
		API:      api,
		Identity: identity,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	out := svc.(*service)
	out.now = func() time.Time { return time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC) }
	return out
}

func TestCheckoutRecordsDeliveredOrderAndClearsCart(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	cartStub := &stubCart{lines: cartLines()}
	svc := newTestService(t, kv, cartStub, nil, &stubIdentity{})

	order, err := svc.Checkout(context.Background(), CheckoutInput{
		DeliveryAddress: "1 Bark Lane",
		Payment:         validPayment(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if order.Status != StatusDelivered {
		t.Errorf("expected delivered status, got %q", order.Status)
	}
	if !order.Total.Equal(decimal.RequireFromString("32.23")) {
		t.Errorf("expected total 32.23, got %s", order.Total)
	}
	if cartStub.cleared != 1 {
		t.Errorf("checkout must clear the cart, cleared=%d", cartStub.cleared)
	}

	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != order.ID {
		t.Fatalf("expected the order in history, got %+v", history)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemKV(), &stubCart{}, nil, &stubIdentity{})
	_, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()})
	if err == nil {
		t.Fatal("expected error for empty cart")
	}
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCheckoutRejectsBadCards(t *testing.T) {
	t.Parallel()

	cases := map[string]Payment{
		"short number": {CardNumber: "1234", ExpMonth: 12, ExpYear: 2031, CVC: "123"},
		"letters":      {CardNumber: "4242abcd42424242", ExpMonth: 12, ExpYear: 2031, CVC: "123"},
		"expired":      {CardNumber: "4242424242424242", ExpMonth: 4, ExpYear: 2026, CVC: "123"},
		"bad month":    {CardNumber: "4242424242424242", ExpMonth: 13, ExpYear: 2031, CVC: "123"},
		"bad cvc":      {CardNumber: "4242424242424242", ExpMonth: 12, ExpYear: 2031, CVC: "12"},
	}
	for name, payment := range cases {
		payment := payment
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			svc := newTestService(t, newMemKV(), &stubCart{lines: cartLines()}, nil, &stubIdentity{})
			if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: payment}); err == nil {
				t.Fatal("expected payment rejection")
			}
		})
	}
}

func TestCheckoutExpiryIsEndOfMonth(t *testing.T) {
	t.Parallel()

	// The clock is pinned to 2026-05-20; a card expiring 05/2026 is still
	// good through the end of May.
	payment := validPayment()
	payment.ExpMonth = 5
	payment.ExpYear = 2026

	svc := newTestService(t, newMemKV(), &stubCart{lines: cartLines()}, nil, &stubIdentity{})
	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: payment}); err != nil {
		t.Fatalf("card expiring this month should authorize, got %v", err)
	}
}

func TestCheckoutMirrorsBackendForSignedIn(t *testing.T) {
	t.Parallel()

	api := &stubOrderAPI{}
	lines := append(cartLines(), cart.Line{ProductID: "local-only", Name: "Mystery Chew", Quantity: 1, Surrogate: true})
	svc := newTestService(t, newMemKV(), &stubCart{lines: lines}, api, &stubIdentity{owner: session.Owner{UserID: "7"}})

	order, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "1 Bark Lane", Payment: validPayment()})
	if err != nil {
		t.Fatal(err)
	}
	if order.RemoteID == nil || *order.RemoteID != 1 {
		t.Fatalf("expected remote order id 1, got %v", order.RemoteID)
	}
	if len(api.calls) != 1 {
		t.Fatalf("expected 1 backend order, got %d", len(api.calls))
	}
	if len(api.calls[0].Items) != 2 {
		t.Errorf("surrogate lines must not reach the backend, got %+v", api.calls[0].Items)
	}
}

func TestCheckoutBackendFailureFailsCheckout(t *testing.T) {
	t.Parallel()

	api := &stubOrderAPI{err: context.DeadlineExceeded}
	cartStub := &stubCart{lines: cartLines()}
	svc := newTestService(t, newMemKV(), cartStub, api, &stubIdentity{owner: session.Owner{UserID: "7"}})

	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()}); err == nil {
		t.Fatal("expected checkout to fail when the backend rejects the order")
	}
	if cartStub.cleared != 0 {
		t.Error("failed checkout must not clear the cart")
	}
	history, _ := svc.History(context.Background())
	if len(history) != 0 {
		t.Errorf("failed checkout must not be recorded, got %+v", history)
	}
}

func TestHasPurchased(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMemKV(), &stubCart{lines: cartLines()}, nil, &stubIdentity{})
	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()}); err != nil {
		t.Fatal(err)
	}

	if !svc.HasPurchased(context.Background(), "41") {
		t.Error("expected product 41 to count as purchased")
	}
	if svc.HasPurchased(context.Background(), "999") {
		t.Error("unpurchased product must not count")
	}
	if svc.HasPurchased(context.Background(), "") {
		t.Error("empty product id must not count")
	}
}

func TestHistoryGroupsRemoteRowsByDelivery(t *testing.T) {
	t.Parallel()

	api := &stubOrderAPI{records: []backend.OrderRecord{
		{
			DeliveryID:  "D1",
			ProductID:   types.FlexString("41"),
			ProductName: "Salmon Crunch Treats",
			Quantity:    types.FlexInt{Value: 2, Present: true},
			TotalPrice:  types.FlexPrice{Decimal: decimal.RequireFromString("25.98")},
			Status:      "delivered",
			OrderDate:   "2026-05-18",
		},
		{
			DeliveryID:  "D1",
			ProductID:   types.FlexString("77"),
			ProductName: "Feather Wand",
			Quantity:    types.FlexInt{Value: 1, Present: true},
			TotalPrice:  types.FlexPrice{Decimal: decimal.RequireFromString("6.25")},
			Status:      "delivered",
			OrderDate:   "2026-05-18",
		},
	}}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Email: "kira@example.com"}}
	svc := newTestService(t, newMemKV(), &stubCart{lines: cartLines()}, api, identity)

	// The mirrored checkout is represented remotely; only local-only
	// orders should survive alongside the remote rows.
	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()}); err != nil {
		t.Fatal(err)
	}

	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one grouped remote order, got %+v", history)
	}
	if len(history[0].Items) != 2 {
		t.Fatalf("expected rows grouped by delivery id, got %+v", history[0].Items)
	}
	if !history[0].Total.Equal(decimal.RequireFromString("32.23")) {
		t.Errorf("expected summed total 32.23, got %s", history[0].Total)
	}
	if !history[0].Items[0].UnitPrice.Equal(decimal.RequireFromString("12.99")) {
		t.Errorf("expected unit price derived from row total, got %s", history[0].Items[0].UnitPrice)
	}
}

func TestHistoryRemoteFailureKeepsLocalOrders(t *testing.T) {
	t.Parallel()

	api := &stubOrderAPI{historyErr: context.DeadlineExceeded}
	identity := &stubIdentity{owner: session.Owner{UserID: "7", Email: "kira@example.com"}}
	svc := newTestService(t, newMemKV(), &stubCart{lines: cartLines()}, api, identity)
	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()}); err != nil {
		t.Fatal(err)
	}

	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the local order to survive a dead backend, got %+v", history)
	}
}

func TestHistoryIsOwnerScoped(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	identity := &stubIdentity{}
	svc := newTestService(t, kv, &stubCart{lines: cartLines()}, nil, identity)
	if _, err := svc.Checkout(context.Background(), CheckoutInput{DeliveryAddress: "x", Payment: validPayment()}); err != nil {
		t.Fatal(err)
	}

	identity.owner = session.Owner{UserID: "7"}
	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("another owner's orders must not be visible, got %+v", history)
	}
}
