package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Planner produces the next assistant message for a thread: either free text
// (terminal for the turn) or a message carrying tool calls.
type Planner interface {
	Plan(ctx context.Context, req PlannerRequest) (*schema.Message, error)
}

// ProductStore is the relational catalog/order collaborator.
type ProductStore interface {
	ListCategories(ctx context.Context) ([]string, error)
	SearchProducts(ctx context.Context, q SearchQuery) (SearchResult, error)
	Recommendations(ctx context.Context, customerID string) ([]Product, error)
	OrderStatus(ctx context.Context, customerID, orderID string) (OrderDetail, error)
	OrderHistory(ctx context.Context, customerID string) ([]OrderSummary, error)
	CreateOrder(ctx context.Context, customerID string, lines []OrderLine) (OrderReceipt, error)
}

// FAQIndex is the vector-search collaborator: embed the query text and return
// the concatenated top-k passages.
type FAQIndex interface {
	Retrieve(ctx context.Context, query string, topK int) (string, error)
}

// CartSession drives the external browser session. Both operations are
// best-effort and must respect the context deadline.
type CartSession interface {
	StageItem(ctx context.Context, productName string) (StageResult, error)
	Checkout(ctx context.Context) (CheckoutResult, error)
}

// Notifier publishes an externally-observable completion signal, used when a
// checkout hand-off finishes so the surrounding surface does not have to poll
// the browser session.
type Notifier interface {
	PublishJSON(ctx context.Context, destination string, payload any) error
}
