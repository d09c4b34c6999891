package order

// CheckoutRequest is the checkout payload. Items come from the caller's
// stored cart, not from this body; totals are always recomputed
// server-side.
// swagger:model CheckoutRequest
type CheckoutRequest struct {
	ShippingAddress Address            `json:"shipping_address"`
	BillingAddress  Address            `json:"billing_address"`
	PaymentMethod   string             `json:"payment_method" example:"card"`
	Card            *CardDetails       `json:"card,omitempty"`
	UPI             *UPIDetails        `json:"upi,omitempty"`
	NetBanking      *NetBankingDetails `json:"netbanking,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

// PaymentDetails builds the tagged union from the flat request payload.
func (r CheckoutRequest) PaymentDetails() PaymentDetails {
	p := PaymentDetails{Method: PaymentMethod(r.PaymentMethod)}
	switch p.Method {
	case PaymentCard:
		p.Card = r.Card
	case PaymentUPI:
		p.UPI = r.UPI
	case PaymentNetBanking:
		p.NetBanking = r.NetBanking
	}
	return p
}

// UpdateStatusRequest payload for fulfilment transitions.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status string `json:"status" example:"processing"`
}
