package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("transaction.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, transactionID string) (domain.Transaction, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return domain.Transaction{}, apperr.New(apperr.CodeBadRequest, "transaction id is required")
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Transaction{}, apperr.Wrap(apperr.CodeInternalServerError, err, "load transaction %s", id)
	}
	if item == nil {
		return domain.Transaction{}, apperr.New(apperr.CodeNotFound, "transaction %s not found", id)
	}
	return *item, nil
}

func (s *Service) CheckEligibility(ctx context.Context, transactionID string) (domain.Transaction, error) {
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.Status != domain.StatusCompleted {
		return domain.Transaction{}, apperr.New(apperr.CodeBadRequest,
			"transaction must be completed to create a shipping label, current status is %q", tx.Status)
	}
	return tx, nil
}
