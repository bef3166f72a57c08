package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. ImportPrice
// is the unit cost used for profit reporting; Quantity is remaining
// stock and Sold the lifetime units sold.
type Product struct {
	ID          int64
	Name        string
	Price       decimal.Decimal
	ImportPrice decimal.Decimal
	CategoryID  int64
	BrandID     int64
	Quantity    int
	Sold        int
	Image       string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
}
