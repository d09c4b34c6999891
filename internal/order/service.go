package order

import (
	"context"
	"errors"
	"log"
)

// Actor is the authenticated caller as reported by the upstream identity
// layer. The core trusts it.
type Actor struct {
	UserID string
	Admin  bool
}

type CheckoutInput struct {
	Items           []CartItem
	ShippingAddress Address
	BillingAddress  Address
	Payment         PaymentDetails
	Notes           string
	IdempotencyKey  string
}

type Service struct {
	repo    Repository
	pricing Pricing
}

func NewService(repo Repository, pricing Pricing) *Service {
	return &Service{repo: repo, pricing: pricing}
}

// Order-number collisions are astronomically rare; three fresh draws is
// plenty before giving up.
const maxOrderNumberAttempts = 3

// Checkout assembles the draft and commits it. Validation failures
// short-circuit before any storage access.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (*Receipt, error) {
	d, err := AssembleDraft(in.Items, DraftInput{
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Payment:         in.Payment,
		Notes:           in.Notes,
	}, s.pricing)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number := NewOrderNumber()
		rc, err := s.repo.Commit(ctx, d, userID, number, in.IdempotencyKey)
		if errors.Is(err, ErrDuplicateOrderNumber) {
			log.Printf("[order] order number collision on %s (attempt %d), regenerating", number, attempt)
			lastErr = err
			continue
		}
		return rc, err
	}
	return nil, lastErr
}

// Cancel verifies ownership before touching the order. The repository
// re-checks the status under lock, so a stale read here cannot cause a
// double restock.
func (s *Service) Cancel(ctx context.Context, orderID string, actor Actor) error {
	o, _, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return ErrAccessDenied
	}
	return s.repo.Cancel(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, orderID string, actor Actor) (*Order, []Item, error) {
	o, items, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Admin && o.UserID != actor.UserID {
		return nil, nil, ErrAccessDenied
	}
	return o, items, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus drives forward fulfilment transitions (admin only,
// enforced by the handler). Inventory never moves here.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status) error {
	return s.repo.UpdateStatus(ctx, orderID, next)
}
