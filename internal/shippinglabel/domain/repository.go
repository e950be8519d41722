package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertPurchased writes label and its first history row atomically. A
	// concurrent purchased label for the same transaction yields
	// AlreadyExists with the stored winner instead of an error.
	InsertPurchased(ctx context.Context, db *gorm.DB, label *ShippingLabel, history *StatusHistory) (InsertResult, error)
	FindPurchasedByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*ShippingLabel, error)
	FindByOrderCode(ctx context.Context, db *gorm.DB, externalOrderID, transactionID string) (*ShippingLabel, error)
	// MarkCancelled moves a purchased label to cancelled and appends the
	// history row in one transaction. It reports false when the label was no
	// longer purchased.
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, history *StatusHistory, now time.Time) (bool, error)
	ListHistory(ctx context.Context, db *gorm.DB, labelID snowflake.ID) ([]StatusHistory, error)
}
