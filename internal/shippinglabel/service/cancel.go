package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	obscontext "github.com/smallbiznis/shiplabel/internal/observability/context"
	obslogger "github.com/smallbiznis/shiplabel/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shiplabel/internal/observability/metrics"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	"go.uber.org/zap"
)

// CancelLabel cancels the carrier order first and only then records the
// cancellation locally. A failed carrier call leaves the label untouched.
func (s *Service) CancelLabel(ctx context.Context, req domain.CancelLabelRequest) error {
	orderCode := strings.TrimSpace(req.OrderCode)
	transactionID := strings.TrimSpace(req.TransactionID)
	if orderCode == "" {
		return apperr.New(apperr.CodeBadRequest, "order code is required")
	}
	ctx = obscontext.WithTransactionID(ctx, transactionID)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("order_code", orderCode))

	tx, err := s.transactionSvc.Get(ctx, transactionID)
	if err != nil {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
		return err
	}
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" || actorID != tx.SellerID {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
		return apperr.New(apperr.CodeForbidden, "only the seller can cancel the shipping label")
	}

	label, err := s.repo.FindByOrderCode(ctx, s.db, orderCode, transactionID)
	if err != nil {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeFailed)
		return apperr.Wrap(apperr.CodeInternalServerError, err, "load shipping label")
	}
	if label == nil {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
		return apperr.New(apperr.CodeNotFound, "shipping label %s not found", orderCode)
	}
	if label.Status != domain.StatusPurchased {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
		return apperr.New(apperr.CodeBadRequest, "shipping label is %q and cannot be cancelled", label.Status)
	}

	if s.guard != nil {
		inFlight, err := s.guard.InFlight(ctx, transactionID)
		if err != nil {
			log.Warn("issuance guard unavailable", zap.Error(err))
		} else if inFlight {
			s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
			return apperr.New(apperr.CodeConflict, "a shipping label issuance is in progress for transaction %s", transactionID)
		}
	}

	start := time.Now()
	err = s.carrier.CancelOrder(ctx, label.ExternalOrderID)
	s.carrierMetrics.ObserveCall(obsmetrics.CarrierOperationCancelOrder, time.Since(start), err)
	if err != nil {
		log.Error("carrier cancel order failed", zap.Error(err))
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeFailed)
		return apperr.Wrap(apperr.CodeExternalServiceError, err, "cancel carrier order")
	}

	now := s.now()
	updated, err := s.repo.MarkCancelled(ctx, s.db, label.ID, s.newHistory(label.ID, domain.StatusCancelled, now), now)
	if err != nil {
		log.Error("carrier order cancelled but local update failed", zap.Error(err))
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeFailed)
		return apperr.Wrap(apperr.CodeInternalServerError, err, "mark shipping label cancelled")
	}
	if !updated {
		s.recordCancelled(ctx, obsmetrics.LabelOutcomeRejected)
		return apperr.New(apperr.CodeConflict, "shipping label %s changed status during cancellation", orderCode)
	}

	log.Info("shipping label cancelled", zap.String("label_id", label.ID.String()))
	s.recordCancelled(ctx, obsmetrics.LabelOutcomeCancelled)
	return nil
}

func (s *Service) recordCancelled(ctx context.Context, outcome string) {
	s.obsMetrics.RecordLabelCancelled(ctx, outcome)
}
