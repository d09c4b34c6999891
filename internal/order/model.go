package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is stored as jsonb; deep postal validation happens upstream,
// here we only require the structural fields.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

func (a Address) complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.Zip != "" && a.Country != ""
}

type VariantDetails struct {
	SKU   string `json:"sku,omitempty"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

type PaymentMethod string

const (
	PaymentCard       PaymentMethod = "card"
	PaymentUPI        PaymentMethod = "upi"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentCOD        PaymentMethod = "cod"
)

type CardDetails struct {
	HolderName string `json:"holder_name"`
	Last4      string `json:"last4"`
	Network    string `json:"network,omitempty"`
}

type UPIDetails struct {
	VPA string `json:"vpa"`
}

type NetBankingDetails struct {
	Bank string `json:"bank"`
}

// PaymentDetails is a tagged union: Method selects which variant (if any)
// is populated. cod carries no variant.
type PaymentDetails struct {
	Method     PaymentMethod      `json:"method"`
	Card       *CardDetails       `json:"card,omitempty"`
	UPI        *UPIDetails        `json:"upi,omitempty"`
	NetBanking *NetBankingDetails `json:"netbanking,omitempty"`
}

// CartItem is the resolved cart line handed over by the cart store: price
// and name were snapshotted when the item was added to the cart, the
// assembler does not re-fetch live catalog prices.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Variant   *VariantDetails `json:"variant_details,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	Payment         PaymentDetails  `json:"payment"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item snapshots product name and unit price at commit time so later
// catalog changes never alter a historical order.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Variant     *VariantDetails `json:"variant_details,omitempty"`
}

// Receipt is what the caller gets back from a successful checkout.
type Receipt struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Total       decimal.Decimal `json:"total"`
}
