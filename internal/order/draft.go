package order

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pricing holds the server-side pricing rules. The client never supplies
// tax or shipping amounts; totals are always recomputed here.
type Pricing struct {
	TaxRate          decimal.Decimal
	ShippingFlat     decimal.Decimal
	FreeShippingOver decimal.Decimal
}

// ShippingFor applies the flat-rate / free-above-threshold rule.
func (p Pricing) ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingOver) {
		return decimal.Zero
	}
	return p.ShippingFlat
}

// DraftInput carries everything the checkout request supplies besides the
// cart itself.
type DraftInput struct {
	ShippingAddress Address
	BillingAddress  Address
	Payment         PaymentDetails
	Notes           string
}

type DraftItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	Variant     *VariantDetails
}

// Draft is the computed, not-yet-persisted order. Invariant:
// TotalAmount = Subtotal + TaxAmount + ShippingAmount, and every item's
// TotalPrice = UnitPrice * Quantity, rounded to two decimals.
type Draft struct {
	Items           []DraftItem
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	ShippingAddress Address
	BillingAddress  Address
	Payment         PaymentDetails
	Notes           string
}

// AssembleDraft validates the resolved cart and computes the totals.
// Pure function: no I/O, no writes.
func AssembleDraft(items []CartItem, in DraftInput, pricing Pricing) (*Draft, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: missing product id", ErrInvalidItem)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be a positive integer (product %s)", ErrInvalidItem, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: negative unit price (product %s)", ErrInvalidItem, it.ProductID)
		}
	}
	if !in.ShippingAddress.complete() {
		return nil, fmt.Errorf("%w: shipping address incomplete", ErrInvalidAddress)
	}
	if !in.BillingAddress.complete() {
		return nil, fmt.Errorf("%w: billing address incomplete", ErrInvalidAddress)
	}
	if err := validatePayment(in.Payment); err != nil {
		return nil, err
	}

	draftItems := make([]DraftItem, 0, len(items))
	subtotal := decimal.Zero
	for _, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		subtotal = subtotal.Add(line)
		draftItems = append(draftItems, DraftItem{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  line,
			Variant:     it.Variant,
		})
	}

	tax := subtotal.Mul(pricing.TaxRate).Round(2)
	shipping := pricing.ShippingFor(subtotal)

	return &Draft{
		Items:           draftItems,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		ShippingAmount:  shipping,
		TotalAmount:     subtotal.Add(tax).Add(shipping),
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Payment:         in.Payment,
		Notes:           in.Notes,
	}, nil
}

// Detail fields are mandatory only for card payments; upi and netbanking
// variants are validated when present, cod never carries one.
func validatePayment(p PaymentDetails) error {
	switch p.Method {
	case PaymentCard:
		if p.Card == nil || p.Card.HolderName == "" || p.Card.Last4 == "" {
			return fmt.Errorf("%w: card holder and last4 are required", ErrMissingPaymentDetails)
		}
	case PaymentUPI:
		if p.UPI != nil && p.UPI.VPA == "" {
			return fmt.Errorf("%w: empty upi vpa", ErrMissingPaymentDetails)
		}
	case PaymentNetBanking:
		if p.NetBanking != nil && p.NetBanking.Bank == "" {
			return fmt.Errorf("%w: empty bank", ErrMissingPaymentDetails)
		}
	case PaymentCOD:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, p.Method)
	}
	return nil
}
