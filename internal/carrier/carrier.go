// Package carrier defines the contract the label workflow depends on for
// creating and cancelling shipment orders with the external carrier.
package carrier

import "context"

// Client is implemented by carrier adapters. Any returned error from
// CreateOrder is treated as retryable by the caller; CancelOrder failures
// are terminal.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error)
	CancelOrder(ctx context.Context, orderCode string) error
}

// Address is the carrier-facing address representation.
type Address struct {
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	Zipcode     string `json:"zipcode"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	State       string `json:"state,omitempty"`
}

type Contact struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type Parcel struct {
	WeightGrams int    `json:"weight"`
	LengthCm    int    `json:"length,omitempty"`
	WidthCm     int    `json:"width,omitempty"`
	HeightCm    int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
}

type Party struct {
	Contact Contact
	Address Address
}

type OrderRequest struct {
	// Reference is the marketplace transaction id.
	Reference     string
	ServiceType   string
	Sender        Party
	Receiver      Party
	Parcels       []Parcel
	PaymentMethod string
	LabelFormat   string
	QuoteID       string
	PickupPoint   bool
}

// Price amounts are in currency minor units (cents, øre).
type Price struct {
	Gross    int64
	Net      int64
	Vat      int64
	Currency string
}

type OrderResponse struct {
	OrderCode      string
	LabelID        string
	LabelURL       string
	TrackingNumber string
	Price          *Price
}
