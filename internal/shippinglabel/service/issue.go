package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/shiplabel/internal/address"
	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/carrier"
	obscontext "github.com/smallbiznis/shiplabel/internal/observability/context"
	obslogger "github.com/smallbiznis/shiplabel/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/shiplabel/internal/observability/metrics"
	"github.com/smallbiznis/shiplabel/internal/retry"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	"go.uber.org/zap"
)

var errMissingOrderCode = errors.New("carrier response has no order code")

// CreateLabel issues a label for a completed transaction. Repeated and
// concurrent calls for one transaction converge on a single purchased label.
func (s *Service) CreateLabel(ctx context.Context, req domain.CreateLabelRequest) (domain.CreateLabelResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	ctx = obscontext.WithTransactionID(ctx, req.TransactionID)
	log := obslogger.WithContext(ctx, s.log)

	if _, err := s.transactionSvc.CheckEligibility(ctx, req.TransactionID); err != nil {
		s.recordIssued(ctx, obsmetrics.LabelOutcomeRejected)
		return domain.CreateLabelResult{}, err
	}
	if err := validateCreateRequest(req); err != nil {
		s.recordIssued(ctx, obsmetrics.LabelOutcomeRejected)
		return domain.CreateLabelResult{}, err
	}

	if res, found, err := s.existingResult(ctx, req.TransactionID, log); err != nil || found {
		return res, err
	}

	release, prior, found, err := s.enterIssuance(ctx, req.TransactionID, log)
	if err != nil || found {
		return prior, err
	}
	defer release()

	if s.guard != nil {
		// a previous holder may have committed after the first check
		if res, found, err := s.existingResult(ctx, req.TransactionID, log); err != nil || found {
			return res, err
		}
	}

	orderReq := buildOrderRequest(req)

	policy := s.retryPolicy()
	exec := retry.NewExecutor(
		retry.WithSleeper(s.sleeper),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.carrierMetrics.IncRetry(obsmetrics.CarrierOperationCreateOrder)
			log.Warn("carrier create order failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)
	order, err := retry.Do(ctx, exec, policy, func(ctx context.Context) (carrier.OrderResponse, error) {
		return s.createOrder(ctx, orderReq)
	})
	if err != nil {
		log.Error("carrier create order exhausted retries", zap.Error(err))
		s.recordIssued(ctx, obsmetrics.LabelOutcomeFailed)
		return domain.CreateLabelResult{}, apperr.Wrap(apperr.CodeExternalServiceError, err, "create carrier order")
	}

	now := s.now()
	label := newPurchasedLabel(req, order, now)
	label.ID = s.genID.Generate()
	history := s.newHistory(label.ID, domain.StatusPurchased, now)

	res, err := s.repo.InsertPurchased(ctx, s.db, &label, history)
	if err != nil {
		log.Error("persist shipping label failed",
			zap.String("order_code", order.OrderCode),
			zap.Error(err),
		)
		s.recordIssued(ctx, obsmetrics.LabelOutcomeFailed)
		return domain.CreateLabelResult{}, apperr.Wrap(apperr.CodeInternalServerError, err, "persist shipping label")
	}

	switch res.Outcome {
	case domain.AlreadyExists:
		log.Warn("concurrent issuance won, carrier order left orphaned",
			zap.String("orphan_order_code", order.OrderCode),
			zap.String("order_code", res.Label.ExternalOrderID),
		)
		s.recordIssued(ctx, obsmetrics.LabelOutcomeRaceResolved)
		return resultFor(res.Label, true), nil
	default:
		log.Info("shipping label purchased",
			zap.String("label_id", res.Label.ID.String()),
			zap.String("order_code", res.Label.ExternalOrderID),
		)
		s.recordIssued(ctx, obsmetrics.LabelOutcomeIssued)
		return resultFor(res.Label, false), nil
	}
}

func (s *Service) existingResult(ctx context.Context, transactionID string, log *zap.Logger) (domain.CreateLabelResult, bool, error) {
	existing, err := s.findPurchased(ctx, transactionID)
	if err != nil {
		s.recordIssued(ctx, obsmetrics.LabelOutcomeFailed)
		return domain.CreateLabelResult{}, false, err
	}
	if existing == nil {
		return domain.CreateLabelResult{}, false, nil
	}
	log.Debug("returning existing shipping label", zap.String("order_code", existing.ExternalOrderID))
	s.recordIssued(ctx, obsmetrics.LabelOutcomeReused)
	return resultFor(*existing, true), true, nil
}

func (s *Service) findPurchased(ctx context.Context, transactionID string) (*domain.ShippingLabel, error) {
	label, err := s.repo.FindPurchasedByTransaction(ctx, s.db, transactionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternalServerError, err, "load shipping label")
	}
	return label, nil
}

func (s *Service) createOrder(ctx context.Context, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	start := time.Now()
	resp, err := s.carrier.CreateOrder(ctx, req)
	if err == nil && strings.TrimSpace(resp.OrderCode) == "" {
		err = errMissingOrderCode
	}
	s.carrierMetrics.ObserveCall(obsmetrics.CarrierOperationCreateOrder, time.Since(start), err)
	return resp, err
}

// enterIssuance takes the in-flight guard for the transaction. While another
// caller holds it, the stored label is polled so the holder's result can be
// returned without a second carrier order. Once the guard TTL has passed, or
// the guard errors, issuance proceeds unguarded and the unique index decides.
func (s *Service) enterIssuance(ctx context.Context, transactionID string, log *zap.Logger) (func(), domain.CreateLabelResult, bool, error) {
	noop := func() {}
	if s.guard == nil {
		return noop, domain.CreateLabelResult{}, false, nil
	}

	guardCfg := s.guardConfig()
	deadline := time.Now().Add(guardCfg.TTL)
	waited := false
	for {
		release, acquired, err := s.guard.Acquire(ctx, transactionID)
		if err != nil {
			log.Warn("issuance guard unavailable", zap.Error(err))
			return noop, domain.CreateLabelResult{}, false, nil
		}
		if acquired {
			if release == nil {
				release = noop
			}
			return release, domain.CreateLabelResult{}, false, nil
		}

		if !waited {
			log.Info("another issuance is in flight, waiting for it")
			waited = true
		}
		if !time.Now().Before(deadline) {
			log.Warn("in-flight issuance outlived guard ttl, proceeding", zap.Duration("ttl", guardCfg.TTL))
			return noop, domain.CreateLabelResult{}, false, nil
		}
		if err := waitFor(ctx, guardCfg.PollInterval); err != nil {
			s.recordIssued(ctx, obsmetrics.LabelOutcomeFailed)
			return noop, domain.CreateLabelResult{}, false, apperr.Wrap(apperr.CodeInternalServerError, err, "wait for in-flight issuance")
		}
		if res, found, err := s.existingResult(ctx, transactionID, log); err != nil || found {
			return noop, res, found, err
		}
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) recordIssued(ctx context.Context, outcome string) {
	s.obsMetrics.RecordLabelIssued(ctx, outcome)
}

func validateCreateRequest(req domain.CreateLabelRequest) error {
	if err := address.Validate(req.PickupAddress); err != nil {
		return err
	}
	if err := address.Validate(req.DeliveryAddress); err != nil {
		return err
	}
	if !req.ShippingMethodType.Valid() {
		return apperr.New(apperr.CodeBadRequest, "invalid shipping method type %q", req.ShippingMethodType)
	}
	return nil
}

func buildOrderRequest(req domain.CreateLabelRequest) carrier.OrderRequest {
	parcels := make([]carrier.Parcel, len(req.Parcels))
	copy(parcels, req.Parcels)

	out := carrier.OrderRequest{
		Reference:   req.TransactionID,
		ServiceType: req.ServiceType,
		Sender: carrier.Party{
			Contact: req.PickupContact,
			Address: address.ForCarrier(req.PickupAddress),
		},
		Receiver: carrier.Party{
			Contact: req.DeliveryContact,
			Address: address.ForCarrier(req.DeliveryAddress),
		},
		Parcels:       parcels,
		PaymentMethod: req.PaymentMethod,
		LabelFormat:   req.LabelFormat,
		PickupPoint:   req.ShippingMethodType == domain.ShippingMethodPickupPoint,
	}
	if req.QuoteID != nil {
		out.QuoteID = strings.TrimSpace(*req.QuoteID)
	}
	return out
}

func newPurchasedLabel(req domain.CreateLabelRequest, order carrier.OrderResponse, now time.Time) domain.ShippingLabel {
	label := domain.ShippingLabel{
		TransactionID:      req.TransactionID,
		ExternalOrderID:    order.OrderCode,
		ExternalLabelID:    order.LabelID,
		LabelURL:           order.LabelURL,
		Status:             domain.StatusPurchased,
		ShippingMethodType: req.ShippingMethodType,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if tn := strings.TrimSpace(order.TrackingNumber); tn != "" {
		label.TrackingNumber = &tn
	}
	if order.Price != nil {
		gross, net, vat := order.Price.Gross, order.Price.Net, order.Price.Vat
		currency := strings.ToUpper(strings.TrimSpace(order.Price.Currency))
		label.PriceGross = &gross
		label.PriceNet = &net
		label.PriceVat = &vat
		label.PriceCurrency = &currency
	}
	return label
}

func resultFor(label domain.ShippingLabel, reused bool) domain.CreateLabelResult {
	return domain.CreateLabelResult{
		Label:          label,
		OrderCode:      label.ExternalOrderID,
		LabelURL:       label.LabelURL,
		TrackingNumber: label.TrackingNumber,
		Reused:         reused,
	}
}
