package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrInvalidItem           = errors.New("invalid cart item")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidPaymentMethod  = errors.New("invalid payment method")
	ErrMissingPaymentDetails = errors.New("missing payment details")

	ErrOrderNotFound        = errors.New("order not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrAlreadyCancelled     = errors.New("order already cancelled")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// StockShortage describes one product that could not cover the requested
// quantity at commit time.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError aborts the whole commit; it lists every product
// that came up short so the caller can adjust the cart in one pass.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		ids[i] = s.ProductID
	}
	return fmt.Sprintf("insufficient stock for product(s): %s", strings.Join(ids, ", "))
}
