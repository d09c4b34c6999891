package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/checkout/internal/order"
)

// Item is one cart line. Name and unit price are snapshots taken when the
// item was added, so the checkout total matches what the cart displayed
// even if the catalog price moved since.
type Item struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	ProductID   string                `json:"product_id"`
	ProductName string                `json:"product_name"`
	UnitPrice   decimal.Decimal       `json:"unit_price"`
	Quantity    int                   `json:"quantity"`
	Variant     *order.VariantDetails `json:"variant_details,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// AddItemRequest payload for adding a product to the cart.
// swagger:model AddItemRequest
type AddItemRequest struct {
	ProductID string                `json:"product_id"`
	Quantity  int                   `json:"quantity" example:"2"`
	Variant   *order.VariantDetails `json:"variant_details,omitempty"`
}
