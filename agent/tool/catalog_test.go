package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/teerapap/storeflow/agent/contract"
)

type fakeProductStore struct {
	categories []string
	search     contractx.SearchResult
	recs       []contractx.Product
	history    []contractx.OrderSummary
	detail     contractx.OrderDetail
	receipt    contractx.OrderReceipt
	err        error

	createCalls []struct {
		customerID string
		lines      []contractx.OrderLine
	}
}

func (f *fakeProductStore) ListCategories(ctx context.Context) ([]string, error) {
	return f.categories, f.err
}

func (f *fakeProductStore) SearchProducts(ctx context.Context, q contractx.SearchQuery) (contractx.SearchResult, error) {
	return f.search, f.err
}

func (f *fakeProductStore) Recommendations(ctx context.Context, customerID string) ([]contractx.Product, error) {
	return f.recs, f.err
}

func (f *fakeProductStore) OrderStatus(ctx context.Context, customerID, orderID string) (contractx.OrderDetail, error) {
	return f.detail, f.err
}

func (f *fakeProductStore) OrderHistory(ctx context.Context, customerID string) ([]contractx.OrderSummary, error) {
	return f.history, f.err
}

func (f *fakeProductStore) CreateOrder(ctx context.Context, customerID string, lines []contractx.OrderLine) (contractx.OrderReceipt, error) {
	f.createCalls = append(f.createCalls, struct {
		customerID string
		lines      []contractx.OrderLine
	}{customerID, lines})
	if f.err != nil {
		return contractx.OrderReceipt{}, f.err
	}
	return f.receipt, nil
}

type fakeFAQ struct {
	context string
	err     error
	queries []string
	topKs   []int
}

func (f *fakeFAQ) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	f.queries = append(f.queries, query)
	f.topKs = append(f.topKs, topK)
	return f.context, f.err
}

type fakeCart struct {
	stage       contractx.StageResult
	checkout    contractx.CheckoutResult
	stageErr    error
	checkoutErr error
	staged      []string
	checkouts   int
}

func (f *fakeCart) StageItem(ctx context.Context, productName string) (contractx.StageResult, error) {
	f.staged = append(f.staged, productName)
	if f.stageErr != nil {
		return contractx.StageResult{}, f.stageErr
	}
	return f.stage, nil
}

func (f *fakeCart) Checkout(ctx context.Context) (contractx.CheckoutResult, error) {
	f.checkouts++
	if f.checkoutErr != nil {
		return contractx.CheckoutResult{}, f.checkoutErr
	}
	return f.checkout, nil
}

type fakeNotifier struct {
	err          error
	destinations []string
	payloads     []any
}

func (f *fakeNotifier) PublishJSON(ctx context.Context, destination string, payload any) error {
	f.destinations = append(f.destinations, destination)
	f.payloads = append(f.payloads, payload)
	return f.err
}

func testDeps() (Deps, *fakeProductStore, *fakeFAQ, *fakeCart, *fakeNotifier) {
	store := &fakeProductStore{}
	faq := &fakeFAQ{}
	cart := &fakeCart{}
	notifier := &fakeNotifier{}
	deps := Deps{
		Store:       store,
		FAQ:         faq,
		Cart:        cart,
		Notifier:    notifier,
		NotifyURL:   "https://hooks.example.com/checkout",
		CartTimeout: time.Second,
	}
	return deps, store, faq, cart, notifier
}

func TestBuildRegistryRequiresCollaborators(t *testing.T) {
	t.Parallel()

	deps, _, _, _, _ := testDeps()

	missing := deps
	missing.Store = nil
	if _, err := BuildRegistry(missing); err == nil {
		t.Fatal("nil store must be rejected")
	}

	missing = deps
	missing.FAQ = nil
	if _, err := BuildRegistry(missing); err == nil {
		t.Fatal("nil faq index must be rejected")
	}

	missing = deps
	missing.Cart = nil
	if _, err := BuildRegistry(missing); err == nil {
		t.Fatal("nil cart session must be rejected")
	}
}

func TestCatalogTrustPartition(t *testing.T) {
	t.Parallel()

	deps, _, _, _, _ := testDeps()
	r, err := BuildRegistry(deps)
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}

	wantSupervised := map[string]bool{
		ToolGetCategories:   false,
		ToolSearchProducts:  false,
		ToolRecommendations: false,
		ToolOrderStatus:     false,
		ToolRetrieveFAQ:     false,
		ToolAddToCart:       false,
		ToolCreateOrder:     true,
	}
	if len(r.Infos()) != len(wantSupervised) {
		t.Fatalf("catalog size = %d, want %d", len(r.Infos()), len(wantSupervised))
	}
	for name, supervised := range wantSupervised {
		tool, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("tool %s missing from catalog", name)
		}
		if got := tool.Trust == TrustSupervised; got != supervised {
			t.Fatalf("tool %s supervised = %v, want %v", name, got, supervised)
		}
	}
}

func TestSearchProductsHandlerMapsFilters(t *testing.T) {
	t.Parallel()

	deps, store, _, _, _ := testDeps()
	store.search = contractx.SearchResult{
		Products: []contractx.Product{{ProductID: "1", Name: "Mug", Price: 4.5}},
		Total:    1,
		Prices:   contractx.PriceRange{Min: 4.5, Max: 4.5, Average: 4.5},
	}

	out, err := deps.searchProducts(context.Background(), Invocation{
		CustomerID: "cust-1",
		Args:       map[string]any{"query": "mug", "max_price": float64(5)},
	})
	if err != nil {
		t.Fatalf("searchProducts() error = %v", err)
	}

	payload, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T", out)
	}
	if payload["status"] != "success" {
		t.Fatalf("payload = %+v", payload)
	}
	meta, ok := payload["metadata"].(map[string]any)
	if !ok || meta["total_results"] != 1 {
		t.Fatalf("metadata = %+v", payload["metadata"])
	}
}

func TestIdentityBoundToolsRequireCustomer(t *testing.T) {
	t.Parallel()

	deps, _, _, _, _ := testDeps()
	anonymous := Invocation{Args: map[string]any{}}

	if _, err := deps.recommendations(context.Background(), anonymous); !errors.Is(err, contractx.ErrMissingCustomer) {
		t.Fatalf("recommendations error = %v, want ErrMissingCustomer", err)
	}
	if _, err := deps.orderStatus(context.Background(), anonymous); !errors.Is(err, contractx.ErrMissingCustomer) {
		t.Fatalf("orderStatus error = %v, want ErrMissingCustomer", err)
	}
	if _, err := deps.createOrder(context.Background(), anonymous); !errors.Is(err, contractx.ErrMissingCustomer) {
		t.Fatalf("createOrder error = %v, want ErrMissingCustomer", err)
	}
}

func TestOrderStatusFallsBackToHistory(t *testing.T) {
	t.Parallel()

	deps, store, _, _, _ := testDeps()
	store.history = []contractx.OrderSummary{{OrderID: "7", Status: "Shipped"}}

	out, err := deps.orderStatus(context.Background(), Invocation{CustomerID: "cust-1", Args: map[string]any{}})
	if err != nil {
		t.Fatalf("orderStatus() error = %v", err)
	}
	payload := out.(map[string]any)
	orders, ok := payload["orders"].([]contractx.OrderSummary)
	if !ok || len(orders) != 1 || orders[0].OrderID != "7" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestRetrieveFAQDefaultsTopK(t *testing.T) {
	t.Parallel()

	deps, _, faq, _, _ := testDeps()
	faq.context = "Machine wash cold."

	if _, err := deps.retrieveFAQ(context.Background(), Invocation{Args: map[string]any{}}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty query error = %v, want ErrValidation", err)
	}

	out, err := deps.retrieveFAQ(context.Background(), Invocation{
		Args: map[string]any{"query_text": "how do I wash this?"},
	})
	if err != nil {
		t.Fatalf("retrieveFAQ() error = %v", err)
	}
	if faq.topKs[len(faq.topKs)-1] != defaultFAQTopK {
		t.Fatalf("topK = %d, want %d", faq.topKs[len(faq.topKs)-1], defaultFAQTopK)
	}
	payload := out.(map[string]any)
	if payload["context"] != "Machine wash cold." {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestAddToCartStagesProduct(t *testing.T) {
	t.Parallel()

	deps, _, _, cart, _ := testDeps()
	cart.stage = contractx.StageResult{ShippingNote: "Ships in 2 days", SessionURL: "https://shop.example.com/cart"}

	out, err := deps.addToCart(context.Background(), Invocation{
		Args: map[string]any{"product_name": "Mug"},
	})
	if err != nil {
		t.Fatalf("addToCart() error = %v", err)
	}
	if len(cart.staged) != 1 || cart.staged[0] != "Mug" {
		t.Fatalf("staged = %v", cart.staged)
	}
	payload := out.(map[string]any)
	if payload["shipping_note"] != "Ships in 2 days" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestCreateOrderParsesLinesAndNotifies(t *testing.T) {
	t.Parallel()

	deps, store, _, cart, notifier := testDeps()
	store.receipt = contractx.OrderReceipt{
		OrderID:     "41",
		TotalAmount: 9.0,
		Products:    []contractx.OrderedProduct{{Name: "Mug", Quantity: 2, UnitPrice: 4.5}},
	}
	cart.checkout = contractx.CheckoutResult{CheckoutURL: "https://shop.example.com/checkout/41"}

	out, err := deps.createOrder(context.Background(), Invocation{
		CustomerID: "cust-1",
		Args: map[string]any{
			"products": []any{
				map[string]any{"product_name": "Mug", "quantity": float64(2)},
			},
		},
	})
	if err != nil {
		t.Fatalf("createOrder() error = %v", err)
	}

	if len(store.createCalls) != 1 {
		t.Fatalf("CreateOrder calls = %d", len(store.createCalls))
	}
	call := store.createCalls[0]
	if call.customerID != "cust-1" {
		t.Fatalf("CreateOrder customer = %q", call.customerID)
	}
	if len(call.lines) != 1 || call.lines[0] != (contractx.OrderLine{ProductName: "Mug", Quantity: 2}) {
		t.Fatalf("CreateOrder lines = %+v", call.lines)
	}

	payload := out.(map[string]any)
	if payload["order_id"] != "41" || payload["checkout_url"] != "https://shop.example.com/checkout/41" {
		t.Fatalf("payload = %+v", payload)
	}
	if cart.checkouts != 1 {
		t.Fatalf("checkouts = %d", cart.checkouts)
	}
	if len(notifier.destinations) != 1 || notifier.destinations[0] != deps.NotifyURL {
		t.Fatalf("notifier destinations = %v", notifier.destinations)
	}
	notice := notifier.payloads[0].(map[string]any)
	if notice["event"] != "checkout.completed" || notice["order_id"] != "41" {
		t.Fatalf("notice = %+v", notice)
	}
}

func TestCreateOrderSurvivesCheckoutFailure(t *testing.T) {
	t.Parallel()

	deps, store, _, cart, notifier := testDeps()
	store.receipt = contractx.OrderReceipt{OrderID: "42", TotalAmount: 4.5}
	cart.checkoutErr = fmt.Errorf("session timed out")

	out, err := deps.createOrder(context.Background(), Invocation{
		CustomerID: "cust-1",
		Args: map[string]any{
			"products": []any{map[string]any{"product_name": "Mug", "quantity": float64(1)}},
		},
	})
	if err != nil {
		t.Fatalf("createOrder() error = %v, order must stand despite checkout failure", err)
	}

	payload := out.(map[string]any)
	if payload["status"] != "success" || payload["order_id"] != "42" {
		t.Fatalf("payload = %+v", payload)
	}
	if !strings.Contains(payload["checkout_error"].(string), "timed out") {
		t.Fatalf("checkout_error = %v", payload["checkout_error"])
	}
	if len(notifier.destinations) != 0 {
		t.Fatal("no notification on a failed checkout hand-off")
	}
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	t.Parallel()

	deps, store, _, _, _ := testDeps()

	cases := []map[string]any{
		{},
		{"products": []any{}},
		{"products": []any{map[string]any{"quantity": float64(1)}}},
		{"products": []any{map[string]any{"product_name": "Mug", "quantity": float64(0)}}},
		{"products": []any{"not-an-object"}},
	}
	for i, args := range cases {
		if _, err := deps.createOrder(context.Background(), Invocation{CustomerID: "cust-1", Args: args}); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("case %d error = %v, want ErrValidation", i, err)
		}
	}
	if len(store.createCalls) != 0 {
		t.Fatalf("invalid lines reached the store: %+v", store.createCalls)
	}
}
