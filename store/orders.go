package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/teerapap/storeflow/agent/contract"
)

const statusPending = "Pending"

func (s *Store) OrderStatus(ctx context.Context, customerID, orderID string) (contract.OrderDetail, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(orderID), 10, 64)
	if err != nil {
		return contract.OrderDetail{}, fmt.Errorf("%w: order id %q", ErrOrderNotFound, orderID)
	}

	order := new(Order)
	err = s.db.NewSelect().
		Model(order).
		Relation("Items").
		Relation("Items.Product").
		Where("o.order_id = ?", id).
		Where("o.customer_id = ?", customerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.OrderDetail{}, fmt.Errorf("%w: order %s for customer %s", ErrOrderNotFound, orderID, customerID)
	}
	if err != nil {
		return contract.OrderDetail{}, fmt.Errorf("store: order status: %w", err)
	}

	var total float64
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		total += float64(item.Quantity) * item.UnitPrice
		name := strconv.FormatInt(item.ProductID, 10)
		if item.Product != nil {
			name = item.Product.Name
		}
		names = append(names, fmt.Sprintf("%s x%d", name, item.Quantity))
	}
	return contract.OrderDetail{
		OrderID:     strconv.FormatInt(order.ID, 10),
		OrderDate:   order.OrderDate,
		Status:      order.Status,
		Products:    strings.Join(names, ", "),
		TotalAmount: total,
	}, nil
}

func (s *Store) OrderHistory(ctx context.Context, customerID string) ([]contract.OrderSummary, error) {
	var orders []Order
	err := s.db.NewSelect().
		Model(&orders).
		Relation("Items").
		Where("o.customer_id = ?", customerID).
		OrderExpr("o.order_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: order history: %w", err)
	}

	out := make([]contract.OrderSummary, 0, len(orders))
	for _, order := range orders {
		var total float64
		var count int
		for _, item := range order.Items {
			total += float64(item.Quantity) * item.UnitPrice
			count += item.Quantity
		}
		out = append(out, contract.OrderSummary{
			OrderID:     strconv.FormatInt(order.ID, 10),
			OrderDate:   order.OrderDate,
			Status:      order.Status,
			ItemCount:   count,
			TotalAmount: total,
		})
	}
	return out, nil
}

// CreateOrder writes the order header, its lines, and the stock decrements in
// a single transaction. Any unknown product or out-of-stock line rolls the
// whole order back.
func (s *Store) CreateOrder(ctx context.Context, customerID string, lines []contract.OrderLine) (contract.OrderReceipt, error) {
	if customerID == "" {
		return contract.OrderReceipt{}, fmt.Errorf("%w: store: empty customer id", contract.ErrValidation)
	}
	if len(lines) == 0 {
		return contract.OrderReceipt{}, fmt.Errorf("%w: store: order has no lines", contract.ErrValidation)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductName) == "" || line.Quantity <= 0 {
			return contract.OrderReceipt{}, fmt.Errorf("%w: store: bad order line %+v", contract.ErrValidation, line)
		}
	}

	var receipt contract.OrderReceipt
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		order := &Order{
			CustomerID: customerID,
			OrderDate:  time.Now().UTC(),
			Status:     statusPending,
		}
		if _, err := tx.NewInsert().Model(order).Returning("order_id").Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, line := range lines {
			product := new(Product)
			err := tx.NewSelect().
				Model(product).
				Where("LOWER(product_name) = LOWER(?)", strings.TrimSpace(line.ProductName)).
				Limit(1).
				Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %q", ErrProductNotFound, line.ProductName)
			}
			if err != nil {
				return fmt.Errorf("lookup product %q: %w", line.ProductName, err)
			}

			res, err := tx.NewUpdate().
				Model((*Product)(nil)).
				Set("quantity = quantity - ?", line.Quantity).
				Where("product_id = ?", product.ID).
				Where("quantity >= ?", line.Quantity).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("decrement stock for %q: %w", product.Name, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("decrement stock for %q: %w", product.Name, err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: %q has %d left, requested %d",
					ErrInsufficientStock, product.Name, product.Quantity, line.Quantity)
			}

			item := &OrderItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			}
			if _, err := tx.NewInsert().Model(item).Exec(ctx); err != nil {
				return fmt.Errorf("insert order line for %q: %w", product.Name, err)
			}

			receipt.Products = append(receipt.Products, contract.OrderedProduct{
				Name:      product.Name,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			receipt.TotalAmount += float64(line.Quantity) * product.Price
		}

		receipt.OrderID = strconv.FormatInt(order.ID, 10)
		return nil
	})
	if err != nil {
		return contract.OrderReceipt{}, fmt.Errorf("store: create order: %w", err)
	}
	return receipt, nil
}
