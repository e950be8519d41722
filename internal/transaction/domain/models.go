package domain

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// Transaction is the read-only view of an order owned by the order system.
type Transaction struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Status   Status `gorm:"not null" json:"status"`
	SellerID string `gorm:"not null" json:"seller_id"`
	BuyerID  string `gorm:"not null" json:"buyer_id"`
}

func (Transaction) TableName() string {
	return "transactions"
}
