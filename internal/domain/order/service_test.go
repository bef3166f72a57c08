package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hntran/storefront/internal/domain/coupon"
	"github.com/hntran/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[int64]*product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockCouponValidator struct {
	coupon *coupon.Coupon
	err    error
}

func (m *mockCouponValidator) Validate(_ context.Context, _ string) (*coupon.Coupon, error) {
	return m.coupon, m.err
}

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

func (m *mockOrderRepo) GetByCode(_ context.Context, _ string) (*Order, error) {
	return m.lastOrder, nil
}

// --- Helpers ---

func newTestProduct(id int64, name string, price decimal.Decimal) product.Product {
	return product.Product{
		ID:          id,
		Name:        name,
		Price:       price,
		ImportPrice: price.Div(decimal.NewFromInt(2)),
		CategoryID:  1,
		BrandID:     1,
		Quantity:    100,
		Image:       "product.jpg",
	}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := NewService(newProductRepo(), &mockCouponValidator{}, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.NewFromInt(10))
	svc := NewService(newProductRepo(p1), &mockCouponValidator{}, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{{ProductID: 1, Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, int64(1), iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := NewService(newProductRepo(), &mockCouponValidator{}, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{{ProductID: 42, Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, int64(42), pnfErr.ProductID)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.NewFromInt(10))
	p1.Quantity = 3
	svc := NewService(newProductRepo(p1), &mockCouponValidator{}, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{{ProductID: 1, Quantity: 5}},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Available)
}

func TestPlaceOrder_NoCoupon(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	p2 := newTestProduct(2, "Gadget", decimal.RequireFromString("20.00"))
	repo := &mockOrderRepo{}
	svc := NewService(newProductRepo(p1, p2), &mockCouponValidator{}, repo)

	o, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.Total))
	assert.True(t, decimal.Zero.Equal(o.Discount))
	assert.Len(t, o.Lines, 2)
	assert.Equal(t, PaymentCOD, o.PaymentMethod)
	assert.NotEmpty(t, o.Code)
	assert.Same(t, o, repo.lastOrder)
}

func TestPlaceOrder_CapturesPriceAndCost(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	svc := NewService(newProductRepo(p1), &mockCouponValidator{}, &mockOrderRepo{})

	o, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{{ProductID: 1, Quantity: 2}},
	})

	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.True(t, p1.Price.Equal(o.Lines[0].UnitPrice))
	assert.True(t, p1.ImportPrice.Equal(o.Lines[0].UnitCost))
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	p2 := newTestProduct(2, "Gadget", decimal.RequireFromString("20.00"))
	cv := &mockCouponValidator{
		coupon: &coupon.Coupon{
			ID:           7,
			Code:         "SAVE10",
			DiscountType: coupon.DiscountPercent,
			Value:        decimal.NewFromInt(10),
		},
	}
	svc := NewService(newProductRepo(p1, p2), cv, &mockOrderRepo{})

	o, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		CouponCode: "SAVE10",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("36.00").Equal(o.Total))
	assert.True(t, decimal.RequireFromString("4.00").Equal(o.Discount))
	assert.Equal(t, int64(7), o.CouponID)
	assert.Equal(t, "SAVE10", o.CouponCode)
}

func TestPlaceOrder_InvalidCoupon(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	cv := &mockCouponValidator{err: coupon.ErrNotFound}
	svc := NewService(newProductRepo(p1), cv, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items:      []ItemInput{{ProductID: 1, Quantity: 1}},
		CouponCode: "BOGUS",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestPlaceOrder_DiscountFlooredAtZero(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	cv := &mockCouponValidator{
		coupon: &coupon.Coupon{
			ID:           8,
			Code:         "HUGE",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.RequireFromString("999.00"),
		},
	}
	svc := NewService(newProductRepo(p1), cv, &mockOrderRepo{})

	o, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items:      []ItemInput{{ProductID: 1, Quantity: 1}},
		CouponCode: "HUGE",
	})

	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(o.Total))
	// DiscountFor caps the fixed discount at the subtotal.
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Discount))
}

func TestQuote_DoesNotPersist(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.RequireFromString("10.00"))
	repo := &mockOrderRepo{}
	svc := NewService(newProductRepo(p1), &mockCouponValidator{}, repo)

	o, err := svc.Quote(context.Background(), CheckoutRequest{
		Items:         []ItemInput{{ProductID: 1, Quantity: 1}},
		PaymentMethod: PaymentVNPay,
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Total))
	assert.Equal(t, PaymentVNPay, o.PaymentMethod)
	assert.Nil(t, repo.lastOrder)
}

func TestPlaceOrder_OrderCreateError(t *testing.T) {
	p1 := newTestProduct(1, "Widget", decimal.NewFromInt(10))
	svc := NewService(
		newProductRepo(p1),
		&mockCouponValidator{},
		&mockOrderRepo{err: errors.New("db write failed")},
	)

	_, err := svc.PlaceOrder(context.Background(), CheckoutRequest{
		Items: []ItemInput{{ProductID: 1, Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}
