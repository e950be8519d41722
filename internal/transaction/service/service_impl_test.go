package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/transaction/domain"
	"github.com/smallbiznis/shiplabel/internal/transaction/repository"
	"github.com/smallbiznis/shiplabel/internal/transaction/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE transactions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL
	)`).Error)
	return db
}

func seedTransaction(t *testing.T, db *gorm.DB, id string, status domain.Status) {
	t.Helper()
	require.NoError(t, db.Exec(
		"INSERT INTO transactions (id, status, seller_id, buyer_id) VALUES (?, ?, ?, ?)",
		id, status, "seller-1", "buyer-1",
	).Error)
}

func newService(db *gorm.DB) domain.Service {
	return service.New(service.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.Provide(),
	})
}

func TestCheckEligibilityAcceptsCompleted(t *testing.T) {
	db := setupTestDB(t)
	seedTransaction(t, db, "T1", domain.StatusCompleted)

	tx, err := newService(db).CheckEligibility(context.Background(), "T1")

	require.NoError(t, err)
	assert.Equal(t, "seller-1", tx.SellerID)
	assert.Equal(t, "buyer-1", tx.BuyerID)
}

func TestCheckEligibilityRejectsOtherStatuses(t *testing.T) {
	db := setupTestDB(t)
	svc := newService(db)

	for _, status := range []domain.Status{domain.StatusPending, domain.StatusCancelled, domain.StatusShipped} {
		id := "T-" + string(status)
		seedTransaction(t, db, id, status)

		_, err := svc.CheckEligibility(context.Background(), id)

		assert.True(t, errors.Is(err, apperr.ErrBadRequest), string(status))
		assert.Contains(t, err.Error(), string(status))
	}
}

func TestCheckEligibilityMissingTransaction(t *testing.T) {
	db := setupTestDB(t)

	_, err := newService(db).CheckEligibility(context.Background(), "nope")

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
