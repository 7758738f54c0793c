package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/teerapap/storeflow/agent/contract"
)

// Tool names. The LLM prompt refers to these, so they stay stable.
const (
	ToolGetCategories   = "get_available_categories"
	ToolSearchProducts  = "search_products"
	ToolRecommendations = "search_products_recommendations"
	ToolOrderStatus     = "check_order_status"
	ToolRetrieveFAQ     = "retrieve_faq_context_from_vectorstore"
	ToolAddToCart       = "add_product_to_cart"
	ToolCreateOrder     = "create_order"
)

const (
	defaultFAQTopK     = 3
	defaultCartTimeout = 45 * time.Second
)

// Deps carries the external collaborators the catalog binds to. Notifier and
// NotifyURL are optional; when present, a completed checkout publishes a
// completion signal there.
type Deps struct {
	Store    contractx.ProductStore
	FAQ      contractx.FAQIndex
	Cart     contractx.CartSession
	Notifier contractx.Notifier

	NotifyURL   string
	CartTimeout time.Duration
}

// BuildRegistry assembles the closed tool catalog for the store assistant.
// Everything except create_order is unsupervised; create_order finalizes a
// purchase and therefore requires approval.
func BuildRegistry(deps Deps) (*Registry, error) {
	if deps.Store == nil {
		return nil, errors.New("product store is required")
	}
	if deps.FAQ == nil {
		return nil, errors.New("faq index is required")
	}
	if deps.Cart == nil {
		return nil, errors.New("cart session is required")
	}
	if deps.CartTimeout <= 0 {
		deps.CartTimeout = defaultCartTimeout
	}

	r := NewRegistry()
	tools := []Tool{
		{
			Info: &schema.ToolInfo{
				Name: ToolGetCategories,
				Desc: "Returns the list of product categories that currently have stock.",
			},
			Trust:   TrustUnsupervised,
			Handler: deps.getCategories,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolSearchProducts,
				Desc: "Searches for products by free text, category, and price bounds.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query":     {Type: schema.String, Desc: "Product name or description to search for"},
					"category":  {Type: schema.String, Desc: "Filter by product category"},
					"min_price": {Type: schema.Number, Desc: "Minimum price filter"},
					"max_price": {Type: schema.Number, Desc: "Maximum price filter"},
				}),
			},
			Trust:   TrustUnsupervised,
			Handler: deps.searchProducts,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolRecommendations,
				Desc: "Recommends products for the current customer based on purchase history.",
			},
			Trust:   TrustUnsupervised,
			Handler: deps.recommendations,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolOrderStatus,
				Desc: "Checks the status of one order, or lists all orders when no id is given.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"order_id": {Type: schema.String, Desc: "Order id to check; omit for the full history"},
				}),
			},
			Trust:   TrustUnsupervised,
			Handler: deps.orderStatus,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolRetrieveFAQ,
				Desc: "Retrieves FAQ passages about product care and usage from the knowledge base.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query_text": {Type: schema.String, Desc: "Question to look up", Required: true},
					"top_k":      {Type: schema.Integer, Desc: "Number of passages to retrieve"},
				}),
			},
			Trust:   TrustUnsupervised,
			Handler: deps.retrieveFAQ,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolAddToCart,
				Desc: "Stages a product in the customer's web cart. Does not check out.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"product_name": {Type: schema.String, Desc: "Exact product name to stage", Required: true},
				}),
			},
			Trust:   TrustUnsupervised,
			Handler: deps.addToCart,
		},
		{
			Info: &schema.ToolInfo{
				Name: ToolCreateOrder,
				Desc: "Places the customer's order: writes it to the store and hands the cart to checkout. Irreversible.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"products": {
						Type:     schema.Array,
						Desc:     "Products to purchase",
						Required: true,
						ElemInfo: &schema.ParameterInfo{
							Type: schema.Object,
							SubParams: map[string]*schema.ParameterInfo{
								"product_name": {Type: schema.String, Desc: "Product name", Required: true},
								"quantity":     {Type: schema.Integer, Desc: "Units to purchase", Required: true},
							},
						},
					},
				}),
			},
			Trust:   TrustSupervised,
			Handler: deps.createOrder,
		},
	}

	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

/* ------------------------------- handlers -------------------------------- */

func (d Deps) getCategories(ctx context.Context, _ Invocation) (any, error) {
	categories, err := d.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"categories": categories}, nil
}

func (d Deps) searchProducts(ctx context.Context, inv Invocation) (any, error) {
	q := contractx.SearchQuery{
		Text:     stringArg(inv.Args, "query"),
		Category: stringArg(inv.Args, "category"),
		MinPrice: floatArg(inv.Args, "min_price"),
		MaxPrice: floatArg(inv.Args, "max_price"),
	}

	result, err := d.Store.SearchProducts(ctx, q)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"status":   "success",
		"products": result.Products,
		"metadata": map[string]any{
			"total_results": result.Total,
			"categories":    result.ByCat,
			"price_range":   result.Prices,
		},
	}, nil
}

func (d Deps) recommendations(ctx context.Context, inv Invocation) (any, error) {
	if inv.CustomerID == "" {
		return nil, contractx.ErrMissingCustomer
	}

	products, err := d.Store.Recommendations(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":          "success",
		"customer_id":     inv.CustomerID,
		"recommendations": products,
	}, nil
}

func (d Deps) orderStatus(ctx context.Context, inv Invocation) (any, error) {
	if inv.CustomerID == "" {
		return nil, contractx.ErrMissingCustomer
	}

	orderID := stringArg(inv.Args, "order_id")
	if orderID == "" {
		orders, err := d.Store.OrderHistory(ctx, inv.CustomerID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"status":      "success",
			"customer_id": inv.CustomerID,
			"orders":      orders,
		}, nil
	}

	detail, err := d.Store.OrderStatus(ctx, inv.CustomerID, orderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":       "success",
		"customer_id":  inv.CustomerID,
		"order_id":     detail.OrderID,
		"order_date":   detail.OrderDate,
		"order_status": detail.Status,
		"products":     detail.Products,
		"total_amount": detail.TotalAmount,
	}, nil
}

func (d Deps) retrieveFAQ(ctx context.Context, inv Invocation) (any, error) {
	query := stringArg(inv.Args, "query_text")
	if query == "" {
		return nil, fmt.Errorf("%w: query_text is required", contractx.ErrValidation)
	}

	topK := intArg(inv.Args, "top_k")
	if topK <= 0 {
		topK = defaultFAQTopK
	}

	passages, err := d.FAQ.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "success", "context": passages}, nil
}

func (d Deps) addToCart(ctx context.Context, inv Invocation) (any, error) {
	name := stringArg(inv.Args, "product_name")
	if name == "" {
		return nil, fmt.Errorf("%w: product_name is required", contractx.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, d.CartTimeout)
	defer cancel()

	staged, err := d.Cart.StageItem(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("stage item in cart: %w", err)
	}
	return map[string]any{
		"status":        "success",
		"shipping_note": staged.ShippingNote,
		"session_url":   staged.SessionURL,
	}, nil
}

func (d Deps) createOrder(ctx context.Context, inv Invocation) (any, error) {
	if inv.CustomerID == "" {
		return nil, contractx.ErrMissingCustomer
	}

	lines, err := orderLines(inv.Args)
	if err != nil {
		return nil, err
	}

	receipt, err := d.Store.CreateOrder(ctx, inv.CustomerID, lines)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"status":       "success",
		"message":      "Order created successfully",
		"order_id":     receipt.OrderID,
		"total_amount": receipt.TotalAmount,
		"products":     receipt.Products,
		"customer_id":  inv.CustomerID,
	}

	// Checkout hand-off is best-effort: the order stands even when the
	// external session fails or times out.
	checkoutCtx, cancel := context.WithTimeout(ctx, d.CartTimeout)
	defer cancel()

	checkout, err := d.Cart.Checkout(checkoutCtx)
	if err != nil {
		log.Warn().Err(err).Str("order_id", receipt.OrderID).Msg("checkout hand-off failed")
		payload["checkout_error"] = err.Error()
		return payload, nil
	}
	payload["checkout_url"] = checkout.CheckoutURL

	if d.Notifier != nil && d.NotifyURL != "" {
		notice := map[string]any{
			"event":        "checkout.completed",
			"order_id":     receipt.OrderID,
			"customer_id":  inv.CustomerID,
			"checkout_url": checkout.CheckoutURL,
		}
		if err := d.Notifier.PublishJSON(ctx, d.NotifyURL, notice); err != nil {
			log.Warn().Err(err).Str("order_id", receipt.OrderID).Msg("publish checkout notification failed")
		}
	}

	return payload, nil
}

/* ----------------------------- argument helpers --------------------------- */

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func floatArg(args map[string]any, key string) *float64 {
	v, ok := args[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func intArg(args map[string]any, key string) int {
	v, ok := args[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func orderLines(args map[string]any) ([]contractx.OrderLine, error) {
	raw, ok := args["products"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%w: products list is required", contractx.ErrValidation)
	}

	lines := make([]contractx.OrderLine, 0, len(raw))
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: products[%d] must be an object", contractx.ErrValidation, i)
		}
		name := stringArg(entry, "product_name")
		if name == "" {
			return nil, fmt.Errorf("%w: products[%d].product_name is required", contractx.ErrValidation, i)
		}
		qty := intArg(entry, "quantity")
		if qty <= 0 {
			return nil, fmt.Errorf("%w: products[%d].quantity must be > 0", contractx.ErrValidation, i)
		}
		lines = append(lines, contractx.OrderLine{ProductName: name, Quantity: qty})
	}
	return lines, nil
}
