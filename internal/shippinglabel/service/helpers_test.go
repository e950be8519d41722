package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/shiplabel/internal/address"
	"github.com/smallbiznis/shiplabel/internal/carrier"
	"github.com/smallbiznis/shiplabel/internal/clock"
	"github.com/smallbiznis/shiplabel/internal/config"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/repository"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/service"
	transactionrepo "github.com/smallbiznis/shiplabel/internal/transaction/repository"
	transactionservice "github.com/smallbiznis/shiplabel/internal/transaction/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE transactions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	seller_id TEXT NOT NULL,
	buyer_id TEXT NOT NULL
);
CREATE TABLE shipping_labels (
	id INTEGER PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	external_order_id TEXT NOT NULL,
	external_label_id TEXT NOT NULL,
	label_url TEXT NOT NULL DEFAULT '',
	tracking_number TEXT,
	status TEXT NOT NULL,
	shipping_method_type TEXT NOT NULL,
	price_gross INTEGER,
	price_net INTEGER,
	price_vat INTEGER,
	price_currency TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX ux_shipping_labels_purchased_transaction
	ON shipping_labels (transaction_id) WHERE status = 'purchased';
CREATE TABLE shipping_label_status_histories (
	id INTEGER PRIMARY KEY,
	shipping_label_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at DATETIME NOT NULL
);
`

var errCarrierDown = errors.New("carrier unavailable")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedTransaction(t *testing.T, db *gorm.DB, id, status string) {
	t.Helper()
	require.NoError(t, db.Exec(
		"INSERT INTO transactions (id, status, seller_id, buyer_id) VALUES (?, ?, ?, ?)",
		id, status, "seller-1", "buyer-1",
	).Error)
}

type carrierMock struct {
	mock.Mock
}

func (m *carrierMock) CreateOrder(ctx context.Context, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(carrier.OrderResponse), args.Error(1)
}

func (m *carrierMock) CancelOrder(ctx context.Context, orderCode string) error {
	args := m.Called(ctx, orderCode)
	return args.Error(0)
}

// countingCarrier hands out a distinct order code per call.
type countingCarrier struct {
	calls atomic.Int64
	delay time.Duration
}

func (c *countingCarrier) CreateOrder(_ context.Context, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	n := c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	code := fmt.Sprintf("ORD-%s-%d", req.Reference, n)
	return carrier.OrderResponse{OrderCode: code, LabelID: "L-" + code}, nil
}

func (c *countingCarrier) CancelOrder(context.Context, string) error {
	return nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// fakeGuard reports the key as held by someone else for the first busy
// Acquire calls, running onBusy each time.
type fakeGuard struct {
	mu         sync.Mutex
	acquireErr error
	inFlight   bool
	busy       int
	onBusy     func()
	attempts   int
	acquired   int
	released   int
}

func (g *fakeGuard) Acquire(context.Context, string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.acquireErr != nil {
		return nil, false, g.acquireErr
	}
	g.attempts++
	if g.busy < 0 || g.attempts <= g.busy {
		if g.onBusy != nil {
			g.onBusy()
		}
		return func() {}, false, nil
	}
	g.acquired++
	return func() {
		g.mu.Lock()
		g.released++
		g.mu.Unlock()
	}, true, nil
}

func (g *fakeGuard) InFlight(context.Context, string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight, nil
}

type harness struct {
	db      *gorm.DB
	svc     *service.Service
	repo    domain.Repository
	clock   *clock.FakeClock
	sleeper *recordingSleeper
	genID   *snowflake.Node
}

type harnessOption func(*service.Params)

func withGuard(g service.IssuanceGuard) harnessOption {
	return func(p *service.Params) { p.Guard = g }
}

func withLogger(log *zap.Logger) harnessOption {
	return func(p *service.Params) { p.Log = log }
}

func withShippingConfig(cfg config.ShippingConfig) harnessOption {
	return func(p *service.Params) { p.ShippingCfg = config.NewStaticShippingConfigHolder(cfg) }
}

func newHarness(t *testing.T, c carrier.Client, opts ...harnessOption) *harness {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sleeper := &recordingSleeper{}
	repo := repository.Provide()

	transactionSvc := transactionservice.New(transactionservice.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: transactionrepo.Provide(),
	})

	params := service.Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          fakeClock,
		Repo:           repo,
		TransactionSvc: transactionSvc,
		Carrier:        c,
		Sleeper:        sleeper.Sleep,
	}
	for _, opt := range opts {
		opt(&params)
	}

	return &harness{
		db:      db,
		svc:     service.NewService(params),
		repo:    repo,
		clock:   fakeClock,
		sleeper: sleeper,
		genID:   node,
	}
}

func validAddress() address.Address {
	return address.Address{
		Street:     "  Main St 1 ",
		City:       " Copenhagen ",
		PostalCode: " 2100 ",
		Country:    "dk",
	}
}

func validRequest(transactionID string) domain.CreateLabelRequest {
	return domain.CreateLabelRequest{
		TransactionID:      transactionID,
		ServiceType:        "GLSDK_SD",
		PickupAddress:      validAddress(),
		DeliveryAddress:    validAddress(),
		Parcels:            []carrier.Parcel{{WeightGrams: 1000}},
		PickupContact:      carrier.Contact{Name: "Seller"},
		DeliveryContact:    carrier.Contact{Name: "Buyer"},
		PaymentMethod:      "invoice",
		LabelFormat:        "a4_pdf",
		ShippingMethodType: domain.ShippingMethodHomeDelivery,
	}
}

func orderResponse(code string) carrier.OrderResponse {
	return carrier.OrderResponse{
		OrderCode:      code,
		LabelID:        "L-" + code,
		LabelURL:       "https://labels/" + code + ".pdf",
		TrackingNumber: "TRK-" + code,
		Price:          &carrier.Price{Gross: 6250, Net: 5000, Vat: 1250, Currency: "dkk"},
	}
}

func (h *harness) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Table(table).Count(&n).Error)
	return n
}
