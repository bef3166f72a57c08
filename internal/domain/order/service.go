package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/domain/coupon"
	"github.com/hntran/storefront/internal/domain/product"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems      = fmt.Errorf("items required")
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InsufficientStockError indicates a line asks for more units than remain.
type InsufficientStockError struct {
	ProductID int64
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d has only %d units in stock", e.ProductID, e.Available)
}

// ItemInput is one requested line of a checkout.
type ItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CheckoutRequest holds the input for pricing and placing an order.
type CheckoutRequest struct {
	Items         []ItemInput   `json:"items"`
	CouponCode    string        `json:"couponCode"`
	CustomerName  string        `json:"customerName"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Service encapsulates checkout business logic.
type Service struct {
	products product.Repository
	coupons  coupon.Validator
	orders   Repository
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Validator,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
	}
}

// Quote validates a checkout request and prices it without persisting
// anything. Gateway payment flows use the quote to build the payment
// amount, then place the order once the callback confirms payment.
func (s *Service) Quote(ctx context.Context, req CheckoutRequest) (*Order, error) {
	return s.price(ctx, req)
}

// PlaceOrder validates and prices the request, then persists the order.
// The repository finalizes stock, sold counts, and coupon redemption in
// one transaction.
func (s *Service) PlaceOrder(ctx context.Context, req CheckoutRequest) (*Order, error) {
	o, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return o, nil
}

// GetByCode returns a finalized order by its public code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Order, error) {
	return s.orders.GetByCode(ctx, code)
}

func (s *Service) price(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]int64, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product exists and has stock, capturing
	// price and cost as they stand right now.
	lines := make([]Line, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if item.Quantity > p.Quantity {
			return nil, &InsufficientStockError{ProductID: p.ID, Available: p.Quantity}
		}

		lines[i] = Line{
			ProductID: p.ID,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
			UnitCost:  p.ImportPrice,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// Apply the coupon when a code is provided.
	discount := decimal.Zero
	var couponID int64
	if req.CouponCode != "" {
		c, err := s.coupons.Validate(ctx, req.CouponCode)
		if err != nil {
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
		discount = c.DiscountFor(subtotal)
		couponID = c.ID
	}

	// Total = subtotal - discount, floored at zero.
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	method := req.PaymentMethod
	if method == "" {
		method = PaymentCOD
	}

	return &Order{
		Code:          uuid.New().String(),
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Lines:         lines,
		Subtotal:      subtotal.Round(2),
		Discount:      discount.Round(2),
		Total:         total.Round(2),
		CouponID:      couponID,
		CouponCode:    req.CouponCode,
		PaymentMethod: method,
		Status:        StatusPending,
	}, nil
}
