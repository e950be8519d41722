package domain

import (
	"context"

	"github.com/smallbiznis/shiplabel/internal/address"
	"github.com/smallbiznis/shiplabel/internal/carrier"
)

// CreateLabelRequest is owned by one call and never shared.
type CreateLabelRequest struct {
	TransactionID      string
	ServiceType        string
	PickupAddress      address.Address
	DeliveryAddress    address.Address
	Parcels            []carrier.Parcel
	PickupContact      carrier.Contact
	DeliveryContact    carrier.Contact
	PaymentMethod      string
	LabelFormat        string
	QuoteID            *string
	ShippingMethodType ShippingMethodType
}

type CreateLabelResult struct {
	Label          ShippingLabel `json:"label"`
	OrderCode      string        `json:"order_code"`
	LabelURL       string        `json:"label_url"`
	TrackingNumber *string       `json:"tracking_number,omitempty"`
	// Reused is set when an existing purchased label was returned.
	Reused bool `json:"reused"`
}

type CancelLabelRequest struct {
	OrderCode     string
	TransactionID string
	// ActorID is the authenticated caller; only the seller may cancel.
	ActorID string
}

type Service interface {
	CreateLabel(ctx context.Context, req CreateLabelRequest) (CreateLabelResult, error)
	CancelLabel(ctx context.Context, req CancelLabelRequest) error
	GetExistingLabel(ctx context.Context, transactionID string) (*ShippingLabel, error)
	GetStatusHistory(ctx context.Context, labelID string) ([]StatusHistory, error)
}
