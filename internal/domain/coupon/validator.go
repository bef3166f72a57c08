package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks whether a coupon code can be redeemed right now and
// returns the coupon on success.
type Validator interface {
	Validate(ctx context.Context, code string) (*Coupon, error)
}

// RepoValidator implements Validator by looking up coupons from a
// Repository and checking activity, validity window, and remaining
// quantity.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon for the given code and checks that it is
// active, inside its validity window, and not exhausted. Redemption
// counting happens at order finalization, not here.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}

	now := v.now()
	if now.Before(c.StartDate) {
		return nil, ErrNotStarted
	}
	if now.After(c.EndDate) {
		return nil, ErrExpired
	}

	if c.Quantity <= 0 {
		return nil, ErrExhausted
	}

	return c, nil
}
