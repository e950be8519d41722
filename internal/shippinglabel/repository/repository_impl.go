package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	pkgdb "github.com/smallbiznis/shiplabel/pkg/db"
	"gorm.io/gorm"
)

var errWinnerMissing = errors.New("purchased label conflict reported but no purchased label found")

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPurchased(ctx context.Context, db *gorm.DB, label *domain.ShippingLabel, history *domain.StatusHistory) (domain.InsertResult, error) {
	inserted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`INSERT INTO shipping_labels (
				id, transaction_id, external_order_id, external_label_id, label_url,
				tracking_number, status, shipping_method_type,
				price_gross, price_net, price_vat, price_currency,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (transaction_id) WHERE status = 'purchased' DO NOTHING`,
			label.ID,
			label.TransactionID,
			label.ExternalOrderID,
			label.ExternalLabelID,
			label.LabelURL,
			label.TrackingNumber,
			label.Status,
			label.ShippingMethodType,
			label.PriceGross,
			label.PriceNet,
			label.PriceVat,
			label.PriceCurrency,
			label.CreatedAt,
			label.UpdatedAt,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		return insertHistory(tx, history)
	})
	if err != nil && !pkgdb.IsDuplicateKeyErr(err) {
		return domain.InsertResult{}, err
	}
	if err == nil && inserted {
		return domain.InsertResult{Outcome: domain.Inserted, Label: *label}, nil
	}

	winner, err := r.FindPurchasedByTransaction(ctx, db, label.TransactionID)
	if err != nil {
		return domain.InsertResult{}, err
	}
	if winner == nil {
		return domain.InsertResult{}, fmt.Errorf("transaction %s: %w", label.TransactionID, errWinnerMissing)
	}
	return domain.InsertResult{Outcome: domain.AlreadyExists, Label: *winner}, nil
}

func (r *repo) FindPurchasedByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*domain.ShippingLabel, error) {
	var label domain.ShippingLabel
	err := db.WithContext(ctx).
		Where("transaction_id = ? AND status = ?", transactionID, domain.StatusPurchased).
		Take(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &label, nil
}

func (r *repo) FindByOrderCode(ctx context.Context, db *gorm.DB, externalOrderID, transactionID string) (*domain.ShippingLabel, error) {
	var label domain.ShippingLabel
	err := db.WithContext(ctx).
		Where("external_order_id = ? AND transaction_id = ?", externalOrderID, transactionID).
		Order("created_at desc, id desc").
		Take(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &label, nil
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, history *domain.StatusHistory, now time.Time) (bool, error) {
	updated := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE shipping_labels
			 SET status = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			domain.StatusCancelled,
			now,
			id,
			domain.StatusPurchased,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true
		return insertHistory(tx, history)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, labelID snowflake.ID) ([]domain.StatusHistory, error) {
	var items []domain.StatusHistory
	err := db.WithContext(ctx).
		Where("shipping_label_id = ?", labelID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func insertHistory(tx *gorm.DB, history *domain.StatusHistory) error {
	return tx.Exec(
		`INSERT INTO shipping_label_status_histories (id, shipping_label_id, status, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		history.ID,
		history.ShippingLabelID,
		history.Status,
		history.ErrorMessage,
		history.CreatedAt,
	).Error
}
