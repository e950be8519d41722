package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/shiplabel/internal/address"
	"github.com/smallbiznis/shiplabel/internal/carrier"
	shippinglabeldomain "github.com/smallbiznis/shiplabel/internal/shippinglabel/domain"
)

type partyRequest struct {
	Address address.Address `json:"address"`
	Contact carrier.Contact `json:"contact"`
}

type createShippingLabelRequest struct {
	ServiceType        string           `json:"service_type"`
	ShippingMethodType string           `json:"shipping_method_type"`
	Pickup             partyRequest     `json:"pickup"`
	Delivery           partyRequest     `json:"delivery"`
	Parcels            []carrier.Parcel `json:"parcels"`
	PaymentMethod      string           `json:"payment_method"`
	LabelFormat        string           `json:"label_format"`
	QuoteID            *string          `json:"quote_id"`
}

func (s *Server) CreateShippingLabel(c *gin.Context) {
	var req createShippingLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Parcels) == 0 {
		AbortWithError(c, newValidationError("parcels", "required", "at least one parcel is required"))
		return
	}

	resp, err := s.shippingLabel.CreateLabel(c.Request.Context(), shippinglabeldomain.CreateLabelRequest{
		TransactionID:      strings.TrimSpace(c.Param("transaction_id")),
		ServiceType:        strings.TrimSpace(req.ServiceType),
		PickupAddress:      req.Pickup.Address,
		DeliveryAddress:    req.Delivery.Address,
		Parcels:            req.Parcels,
		PickupContact:      req.Pickup.Contact,
		DeliveryContact:    req.Delivery.Contact,
		PaymentMethod:      strings.TrimSpace(req.PaymentMethod),
		LabelFormat:        strings.TrimSpace(req.LabelFormat),
		QuoteID:            req.QuoteID,
		ShippingMethodType: shippinglabeldomain.ShippingMethodType(strings.TrimSpace(req.ShippingMethodType)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetShippingLabel(c *gin.Context) {
	label, err := s.shippingLabel.GetExistingLabel(c.Request.Context(), strings.TrimSpace(c.Param("transaction_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if label == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": label})
}

func (s *Server) CancelShippingLabel(c *gin.Context) {
	err := s.shippingLabel.CancelLabel(c.Request.Context(), shippinglabeldomain.CancelLabelRequest{
		OrderCode:     strings.TrimSpace(c.Param("order_code")),
		TransactionID: strings.TrimSpace(c.Param("transaction_id")),
		ActorID:       actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetShippingLabelHistory(c *gin.Context) {
	history, err := s.shippingLabel.GetStatusHistory(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}
