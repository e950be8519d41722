package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/carrier"
	"github.com/smallbiznis/shiplabel/internal/clock"
	"github.com/smallbiznis/shiplabel/internal/config"
	obsmetrics "github.com/smallbiznis/shiplabel/internal/observability/metrics"
	"github.com/smallbiznis/shiplabel/internal/retry"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	transactiondomain "github.com/smallbiznis/shiplabel/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IssuanceGuard marks a transaction as having an issuance in flight. It is
// advisory: the purchased-label unique index stays the source of truth.
type IssuanceGuard interface {
	Acquire(ctx context.Context, transactionID string) (release func(), acquired bool, err error)
	InFlight(ctx context.Context, transactionID string) (bool, error)
}

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	TransactionSvc transactiondomain.Service
	Carrier        carrier.Client
	ShippingCfg    *config.ShippingConfigHolder `optional:"true"`
	Guard          IssuanceGuard                `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics          `optional:"true"`
	CarrierMetrics *obsmetrics.CarrierMetrics   `optional:"true"`
	Sleeper        retry.Sleeper                `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	repo           domain.Repository
	transactionSvc transactiondomain.Service
	carrier        carrier.Client
	shippingCfg    *config.ShippingConfigHolder
	guard          IssuanceGuard
	obsMetrics     *obsmetrics.Metrics
	carrierMetrics *obsmetrics.CarrierMetrics
	sleeper        retry.Sleeper
}

func New(p Params) domain.Service {
	return NewService(p)
}

func NewService(p Params) *Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("shippinglabel.service"),
		genID:          p.GenID,
		clock:          c,
		repo:           p.Repo,
		transactionSvc: p.TransactionSvc,
		carrier:        p.Carrier,
		shippingCfg:    p.ShippingCfg,
		guard:          p.Guard,
		obsMetrics:     p.ObsMetrics,
		carrierMetrics: p.CarrierMetrics,
		sleeper:        p.Sleeper,
	}
}

func (s *Service) GetExistingLabel(ctx context.Context, transactionID string) (*domain.ShippingLabel, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, apperr.New(apperr.CodeBadRequest, "transaction id is required")
	}
	label, err := s.repo.FindPurchasedByTransaction(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternalServerError, err, "load shipping label")
	}
	return label, nil
}

func (s *Service) GetStatusHistory(ctx context.Context, labelID string) ([]domain.StatusHistory, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(labelID))
	if err != nil || id == 0 {
		return nil, apperr.New(apperr.CodeBadRequest, "invalid shipping label id %q", labelID)
	}
	items, err := s.repo.ListHistory(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternalServerError, err, "load status history")
	}
	return items, nil
}

func (s *Service) retryPolicy() retry.Policy {
	if s.shippingCfg == nil {
		return retry.DefaultPolicy()
	}
	return s.shippingCfg.Get().RetryPolicy()
}

func (s *Service) guardConfig() config.IssuanceGuardConfig {
	defaults := config.DefaultShippingConfig().IssuanceGuard
	if s.shippingCfg == nil {
		return defaults
	}
	cfg := s.shippingCfg.Get().IssuanceGuard
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	return cfg
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) newHistory(labelID snowflake.ID, status domain.Status, now time.Time) *domain.StatusHistory {
	return &domain.StatusHistory{
		ID:              s.genID.Generate(),
		ShippingLabelID: labelID,
		Status:          status,
		CreatedAt:       now,
	}
}
