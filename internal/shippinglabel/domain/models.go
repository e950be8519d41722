package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPurchased Status = "purchased"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

type ShippingMethodType string

const (
	ShippingMethodHomeDelivery ShippingMethodType = "home_delivery"
	ShippingMethodPickupPoint  ShippingMethodType = "pickup_point"
)

func (t ShippingMethodType) Valid() bool {
	return t == ShippingMethodHomeDelivery || t == ShippingMethodPickupPoint
}

type ShippingLabel struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	TransactionID      string             `gorm:"not null;index" json:"transaction_id"`
	ExternalOrderID    string             `gorm:"not null" json:"external_order_id"`
	ExternalLabelID    string             `json:"external_label_id,omitempty"`
	LabelURL           string             `json:"label_url,omitempty"`
	TrackingNumber     *string            `json:"tracking_number,omitempty"`
	Status             Status             `gorm:"not null" json:"status"`
	ShippingMethodType ShippingMethodType `gorm:"not null" json:"shipping_method_type"`
	// Price snapshot in currency minor units.
	PriceGross         *int64             `json:"price_gross,omitempty"`
	PriceNet           *int64             `json:"price_net,omitempty"`
	PriceVat           *int64             `json:"price_vat,omitempty"`
	PriceCurrency      *string            `json:"price_currency,omitempty"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (ShippingLabel) TableName() string {
	return "shipping_labels"
}

// StatusHistory is append-only: rows are never updated or deleted.
type StatusHistory struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	ShippingLabelID snowflake.ID `gorm:"not null;index" json:"shipping_label_id"`
	Status          Status       `gorm:"not null" json:"status"`
	ErrorMessage    *string      `json:"error_message,omitempty"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (StatusHistory) TableName() string {
	return "shipping_label_status_histories"
}

// InsertOutcome tags the result of a purchased-label write.
type InsertOutcome int

const (
	// Inserted means the caller's label is now the purchased label.
	Inserted InsertOutcome = iota + 1
	// AlreadyExists means a concurrent writer won; Label holds the winner.
	AlreadyExists
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

type InsertResult struct {
	Outcome InsertOutcome
	Label   ShippingLabel
}
