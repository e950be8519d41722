package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/observability"
	shippinglabeldomain "github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeShippingLabelService struct {
	createReq  shippinglabeldomain.CreateLabelRequest
	createResp shippinglabeldomain.CreateLabelResult
	createErr  error

	cancelReq shippinglabeldomain.CancelLabelRequest
	cancelErr error

	existing    *shippinglabeldomain.ShippingLabel
	existingErr error

	history    []shippinglabeldomain.StatusHistory
	historyErr error
}

func (f *fakeShippingLabelService) CreateLabel(_ context.Context, req shippinglabeldomain.CreateLabelRequest) (shippinglabeldomain.CreateLabelResult, error) {
	f.createReq = req
	return f.createResp, f.createErr
}

func (f *fakeShippingLabelService) CancelLabel(_ context.Context, req shippinglabeldomain.CancelLabelRequest) error {
	f.cancelReq = req
	return f.cancelErr
}

func (f *fakeShippingLabelService) GetExistingLabel(_ context.Context, _ string) (*shippinglabeldomain.ShippingLabel, error) {
	return f.existing, f.existingErr
}

func (f *fakeShippingLabelService) GetStatusHistory(_ context.Context, _ string) ([]shippinglabeldomain.StatusHistory, error) {
	return f.history, f.historyErr
}

func newTestServer(t *testing.T, svc shippinglabeldomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{Environment: "test"}, zap.NewNop(), nil)
	NewServer(ServerParams{Gin: engine, ShippingLabelSvc: svc})
	return engine
}

func doRequest(engine *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func validCreateBody() map[string]any {
	addr := map[string]any{
		"street":      "Main St 1",
		"city":        "Copenhagen",
		"postal_code": "2100",
		"country":     "dk",
	}
	return map[string]any{
		"service_type":         "GLSDK_SD",
		"shipping_method_type": "home_delivery",
		"pickup":               map[string]any{"address": addr, "contact": map[string]any{"name": "Seller"}},
		"delivery":             map[string]any{"address": addr, "contact": map[string]any{"name": "Buyer"}},
		"parcels":              []map[string]any{{"weight": 1000}},
		"payment_method":       "invoice",
		"label_format":         "a4_pdf",
	}
}

func TestCreateShippingLabel(t *testing.T) {
	tracking := "TRK-1"
	svc := &fakeShippingLabelService{
		createResp: shippinglabeldomain.CreateLabelResult{
			Label:          shippinglabeldomain.ShippingLabel{ID: snowflake.ID(42), TransactionID: "T1", Status: shippinglabeldomain.StatusPurchased},
			OrderCode:      "ORD-1",
			LabelURL:       "https://labels/1.pdf",
			TrackingNumber: &tracking,
		},
	}
	engine := newTestServer(t, svc)

	w := doRequest(engine, http.MethodPost, "/api/transactions/T1/shipping-label", "seller-1", validCreateBody())

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "T1", svc.createReq.TransactionID)
	assert.Equal(t, shippinglabeldomain.ShippingMethodHomeDelivery, svc.createReq.ShippingMethodType)
	assert.Equal(t, "dk", svc.createReq.DeliveryAddress.Country)
	require.Len(t, svc.createReq.Parcels, 1)
	assert.Equal(t, 1000, svc.createReq.Parcels[0].WeightGrams)

	var resp struct {
		Data shippinglabeldomain.CreateLabelResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-1", resp.Data.OrderCode)
	assert.Equal(t, snowflake.ID(42), resp.Data.Label.ID)
}

func TestCreateShippingLabelRequiresActor(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{})

	w := doRequest(engine, http.MethodPost, "/api/transactions/T1/shipping-label", "", validCreateBody())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateShippingLabelRequiresParcels(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{})
	body := validCreateBody()
	delete(body, "parcels")

	w := doRequest(engine, http.MethodPost, "/api/transactions/T1/shipping-label", "seller-1", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeError(t, w).Type)
}

func TestCreateShippingLabelMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    apperr.Code
		message string
	}{
		{
			name:    "ineligible",
			err:     apperr.New(apperr.CodeBadRequest, "transaction must be completed to create a shipping label, current status is %q", "pending"),
			status:  http.StatusBadRequest,
			code:    apperr.CodeBadRequest,
			message: `transaction must be completed to create a shipping label, current status is "pending"`,
		},
		{
			name:   "invalid_address",
			err:    apperr.New(apperr.CodeInvalidAddress, "missing required address fields: city"),
			status: http.StatusUnprocessableEntity,
			code:   apperr.CodeInvalidAddress,
		},
		{
			name:   "not_found",
			err:    apperr.New(apperr.CodeNotFound, "transaction not found"),
			status: http.StatusNotFound,
			code:   apperr.CodeNotFound,
		},
		{
			name:   "carrier",
			err:    apperr.Wrap(apperr.CodeExternalServiceError, context.DeadlineExceeded, "carrier order failed"),
			status: http.StatusBadGateway,
			code:   apperr.CodeExternalServiceError,
		},
		{
			name:    "internal",
			err:     apperr.Wrap(apperr.CodeInternalServerError, context.Canceled, "persist label: boom"),
			status:  http.StatusInternalServerError,
			code:    apperr.CodeInternalServerError,
			message: "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestServer(t, &fakeShippingLabelService{createErr: tc.err})

			w := doRequest(engine, http.MethodPost, "/api/transactions/T1/shipping-label", "seller-1", validCreateBody())

			require.Equal(t, tc.status, w.Code)
			payload := decodeError(t, w)
			assert.Equal(t, string(tc.code), payload.Code)
			if tc.message != "" {
				assert.Equal(t, tc.message, payload.Message)
			}
		})
	}
}

func TestGetShippingLabel(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{})
	w := doRequest(engine, http.MethodGet, "/api/transactions/T1/shipping-label", "buyer-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	engine = newTestServer(t, &fakeShippingLabelService{
		existing: &shippinglabeldomain.ShippingLabel{ID: snowflake.ID(7), TransactionID: "T1", Status: shippinglabeldomain.StatusPurchased},
	})
	w = doRequest(engine, http.MethodGet, "/api/transactions/T1/shipping-label", "buyer-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"purchased"`)
}

func TestCancelShippingLabel(t *testing.T) {
	svc := &fakeShippingLabelService{}
	engine := newTestServer(t, svc)

	w := doRequest(engine, http.MethodDelete, "/api/transactions/T1/shipping-label/ORD-1", "seller-1", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, shippinglabeldomain.CancelLabelRequest{
		OrderCode:     "ORD-1",
		TransactionID: "T1",
		ActorID:       "seller-1",
	}, svc.cancelReq)
}

func TestCancelShippingLabelForbidden(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{
		cancelErr: apperr.New(apperr.CodeForbidden, "only the seller can cancel a shipping label"),
	})

	w := doRequest(engine, http.MethodDelete, "/api/transactions/T1/shipping-label/ORD-1", "buyer-1", nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetShippingLabelHistory(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{
		history: []shippinglabeldomain.StatusHistory{
			{ID: snowflake.ID(1), ShippingLabelID: snowflake.ID(7), Status: shippinglabeldomain.StatusPurchased},
			{ID: snowflake.ID(2), ShippingLabelID: snowflake.ID(7), Status: shippinglabeldomain.StatusCancelled},
		},
	})

	w := doRequest(engine, http.MethodGet, "/api/shipping-labels/7/history", "seller-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []shippinglabeldomain.StatusHistory `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, shippinglabeldomain.StatusCancelled, resp.Data[1].Status)
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{})

	w := doRequest(engine, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Type)
}

func TestHealth(t *testing.T) {
	engine := newTestServer(t, &fakeShippingLabelService{})
	w := doRequest(engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
