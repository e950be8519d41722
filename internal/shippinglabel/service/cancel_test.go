package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func issueLabel(t *testing.T, h *harness, c *carrierMock, txID, orderCode string) domain.CreateLabelResult {
	t.Helper()
	seedTransaction(t, h.db, txID, "completed")
	c.On("CreateOrder", mock.Anything, mock.Anything).Return(orderResponse(orderCode), nil).Once()
	res, err := h.svc.CreateLabel(context.Background(), validRequest(txID))
	require.NoError(t, err)
	return res
}

func cancelRequest(txID, orderCode string) domain.CancelLabelRequest {
	return domain.CancelLabelRequest{
		OrderCode:     orderCode,
		TransactionID: txID,
		ActorID:       "seller-1",
	}
}

func TestCancelLabel(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	issued := issueLabel(t, h, c, "T1", "ORD-1")
	c.On("CancelOrder", mock.Anything, "ORD-1").Return(nil).Once()
	h.clock.Advance(time.Minute)
	ctx := context.Background()

	require.NoError(t, h.svc.CancelLabel(ctx, cancelRequest("T1", "ORD-1")))

	existing, err := h.svc.GetExistingLabel(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, existing)

	history, err := h.svc.GetStatusHistory(ctx, issued.Label.ID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusPurchased, history[0].Status)
	assert.Equal(t, domain.StatusCancelled, history[1].Status)
	assert.True(t, history[1].CreatedAt.After(history[0].CreatedAt))
	c.AssertExpectations(t)
}

func TestCancelLabelCarrierFailureLeavesLabelPurchased(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	issued := issueLabel(t, h, c, "T1", "ORD-1")
	c.On("CancelOrder", mock.Anything, "ORD-1").Return(errCarrierDown).Once()
	ctx := context.Background()

	err := h.svc.CancelLabel(ctx, cancelRequest("T1", "ORD-1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrExternalServiceError))
	assert.True(t, errors.Is(err, errCarrierDown))

	existing, err := h.svc.GetExistingLabel(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, domain.StatusPurchased, existing.Status)

	history, err := h.svc.GetStatusHistory(ctx, issued.Label.ID.String())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCancelLabelRequiresSeller(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	issueLabel(t, h, c, "T1", "ORD-1")

	for _, actor := range []string{"buyer-1", "", "someone"} {
		req := cancelRequest("T1", "ORD-1")
		req.ActorID = actor

		err := h.svc.CancelLabel(context.Background(), req)

		assert.True(t, errors.Is(err, apperr.ErrForbidden), "actor %q", actor)
	}
	c.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
}

func TestCancelLabelUnknownOrderCode(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	issueLabel(t, h, c, "T1", "ORD-1")
	seedTransaction(t, h.db, "T2", "completed")

	err := h.svc.CancelLabel(context.Background(), cancelRequest("T1", "ORD-404"))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// order codes are scoped to their transaction
	err = h.svc.CancelLabel(context.Background(), cancelRequest("T2", "ORD-1"))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	c.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
}

func TestCancelLabelUnknownTransaction(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)

	err := h.svc.CancelLabel(context.Background(), cancelRequest("missing", "ORD-1"))

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCancelLabelAlreadyCancelled(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	issueLabel(t, h, c, "T1", "ORD-1")
	c.On("CancelOrder", mock.Anything, "ORD-1").Return(nil).Once()
	ctx := context.Background()

	require.NoError(t, h.svc.CancelLabel(ctx, cancelRequest("T1", "ORD-1")))
	err := h.svc.CancelLabel(ctx, cancelRequest("T1", "ORD-1"))

	assert.True(t, errors.Is(err, apperr.ErrBadRequest))
	c.AssertNumberOfCalls(t, "CancelOrder", 1)
}

func TestCancelLabelRejectedWhileIssuanceInFlight(t *testing.T) {
	c := &carrierMock{}
	guard := &fakeGuard{}
	h := newHarness(t, c, withGuard(guard))
	issueLabel(t, h, c, "T1", "ORD-1")
	guard.inFlight = true

	err := h.svc.CancelLabel(context.Background(), cancelRequest("T1", "ORD-1"))

	assert.True(t, errors.Is(err, apperr.ErrConflict))
	c.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
}

func TestCancelledLabelAllowsNewIssuance(t *testing.T) {
	c := &carrierMock{}
	h := newHarness(t, c)
	first := issueLabel(t, h, c, "T1", "ORD-1")
	c.On("CancelOrder", mock.Anything, "ORD-1").Return(nil).Once()
	ctx := context.Background()
	require.NoError(t, h.svc.CancelLabel(ctx, cancelRequest("T1", "ORD-1")))

	c.On("CreateOrder", mock.Anything, mock.Anything).Return(orderResponse("ORD-2"), nil).Once()
	second, err := h.svc.CreateLabel(ctx, validRequest("T1"))

	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.Label.ID, second.Label.ID)
	assert.Equal(t, "ORD-2", second.OrderCode)
	assert.Equal(t, int64(2), h.countRows(t, "shipping_labels"))
}
