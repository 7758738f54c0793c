package contract

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// PlannerRequest carries everything the planning model sees: the full message
// history for the thread plus the identity fact injected into the system prompt.
type PlannerRequest struct {
	CustomerID string            `json:"customer_id"`
	History    []*schema.Message `json:"history"`
	Now        time.Time         `json:"now"`
}

// PendingApproval describes a supervised tool call the conversation is paused
// on. Args are the parsed tool arguments, decoded for display at the gate.
type PendingApproval struct {
	ThreadID    string         `json:"thread_id"`
	ToolCallID  string         `json:"tool_call_id"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// TurnResult is what every entry point returns: either a final assistant reply
// or a pending approval descriptor, never both.
type TurnResult struct {
	Reply   string           `json:"reply,omitempty"`
	Pending *PendingApproval `json:"pending,omitempty"`
}

func (r TurnResult) IsPending() bool {
	return r.Pending != nil
}

/* --------------------------- store collaborator -------------------------- */

type Product struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type SearchQuery struct {
	Text     string   `json:"query,omitempty"`
	Category string   `json:"category,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

type CategoryCount struct {
	Name         string `json:"name"`
	ProductCount int    `json:"product_count"`
}

type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

type SearchResult struct {
	Products []Product       `json:"products"`
	Total    int             `json:"total_results"`
	ByCat    []CategoryCount `json:"categories"`
	Prices   PriceRange      `json:"price_range"`
}

type OrderLine struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type OrderedProduct struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderReceipt struct {
	OrderID     string           `json:"order_id"`
	TotalAmount float64          `json:"total_amount"`
	Products    []OrderedProduct `json:"products"`
}

type OrderDetail struct {
	OrderID     string    `json:"order_id"`
	OrderDate   time.Time `json:"order_date"`
	Status      string    `json:"status"`
	Products    string    `json:"products"`
	TotalAmount float64   `json:"total_amount"`
}

type OrderSummary struct {
	OrderID     string    `json:"order_id"`
	OrderDate   time.Time `json:"order_date"`
	Status      string    `json:"status"`
	ItemCount   int       `json:"item_count"`
	TotalAmount float64   `json:"total_amount"`
}

/* -------------------------- browser collaborator ------------------------- */

type StageResult struct {
	ShippingNote string `json:"shipping_note"`
	SessionURL   string `json:"session_url"`
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkout_url"`
}
