package store

import (
	"time"

	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64   `bun:"product_id,pk,autoincrement"`
	Name        string  `bun:"product_name,notnull"`
	Category    string  `bun:"category,notnull"`
	Description string  `bun:"description"`
	Price       float64 `bun:"price,notnull"`
	Quantity    int     `bun:"quantity,notnull"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64     `bun:"order_id,pk,autoincrement"`
	CustomerID string    `bun:"customer_id,notnull"`
	OrderDate  time.Time `bun:"order_date,notnull"`
	Status     string    `bun:"status,notnull"`

	Items []*OrderItem `bun:"rel:has-many,join:order_id=order_id"`
}

type OrderItem struct {
	bun.BaseModel `bun:"table:order_details,alias:od"`

	ID        int64   `bun:"order_detail_id,pk,autoincrement"`
	OrderID   int64   `bun:"order_id,notnull"`
	ProductID int64   `bun:"product_id,notnull"`
	Quantity  int     `bun:"quantity,notnull"`
	UnitPrice float64 `bun:"unit_price,notnull"`

	Product *Product `bun:"rel:belongs-to,join:product_id=product_id"`
}
