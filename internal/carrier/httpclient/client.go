package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/shiplabel/internal/carrier"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 1 << 20
)

// Config configures the carrier REST client.
type Config struct {
	BaseURL  string
	Username string
	APIKey   string
	Timeout  time.Duration
}

// Client talks JSON over HTTP to the carrier's order API.
type Client struct {
	baseURL    string
	username   string
	apiKey     string
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("carrier base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid carrier base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		username:   strings.TrimSpace(cfg.Username),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// StatusError is returned for any non-2xx carrier response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("carrier responded with status %d: %s", e.Status, e.Body)
}

func (e *StatusError) StatusCode() int {
	return e.Status
}

type partyPayload struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	Zipcode     string `json:"zipcode"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	State       string `json:"state,omitempty"`
}

type orderPayload struct {
	Reference     string           `json:"reference"`
	ProductCode   string           `json:"product_code"`
	Sender        partyPayload     `json:"sender"`
	Receiver      partyPayload     `json:"receiver"`
	Parcels       []carrier.Parcel `json:"parcels"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	LabelFormat   string           `json:"label_format,omitempty"`
	QuoteID       string           `json:"quote_id,omitempty"`
	ServicePoint  bool             `json:"service_point"`
}

// pricePayload amounts are decimal major units as sent by the carrier.
type pricePayload struct {
	Gross    json.Number `json:"gross"`
	Net      json.Number `json:"net"`
	Vat      json.Number `json:"vat"`
	Currency string      `json:"currency"`
}

type orderResponse struct {
	OrderCode      string        `json:"order_code"`
	LabelID        string        `json:"label_id"`
	LabelURL       string        `json:"label_url"`
	TrackingNumber string        `json:"tracking_number"`
	Price          *pricePayload `json:"price"`
}

func (c *Client) CreateOrder(ctx context.Context, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	payload := orderPayload{
		Reference:     req.Reference,
		ProductCode:   req.ServiceType,
		Sender:        toParty(req.Sender),
		Receiver:      toParty(req.Receiver),
		Parcels:       req.Parcels,
		PaymentMethod: req.PaymentMethod,
		LabelFormat:   req.LabelFormat,
		QuoteID:       req.QuoteID,
		ServicePoint:  req.PickupPoint,
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &resp); err != nil {
		return carrier.OrderResponse{}, fmt.Errorf("create order: %w", err)
	}

	out := carrier.OrderResponse{
		OrderCode:      resp.OrderCode,
		LabelID:        resp.LabelID,
		LabelURL:       resp.LabelURL,
		TrackingNumber: resp.TrackingNumber,
	}
	if resp.Price != nil {
		price, err := toPrice(resp.Price)
		if err != nil {
			return carrier.OrderResponse{}, fmt.Errorf("create order: %w", err)
		}
		out.Price = &price
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderCode string) error {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		return errors.New("cancel order: order code is required")
	}
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderCode)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderCode, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" || c.apiKey != "" {
		httpReq.SetBasicAuth(c.username, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func toParty(p carrier.Party) partyPayload {
	return partyPayload{
		Name:        p.Contact.Name,
		Company:     p.Contact.Company,
		Email:       p.Contact.Email,
		Phone:       p.Contact.Phone,
		Address1:    p.Address.Address1,
		Address2:    p.Address.Address2,
		Zipcode:     p.Address.Zipcode,
		City:        p.Address.City,
		CountryCode: p.Address.CountryCode,
		State:       p.Address.State,
	}
}

var _ carrier.Client = (*Client)(nil)

func toPrice(p *pricePayload) (carrier.Price, error) {
	gross, err := minorUnits(p.Gross)
	if err != nil {
		return carrier.Price{}, fmt.Errorf("price gross: %w", err)
	}
	net, err := minorUnits(p.Net)
	if err != nil {
		return carrier.Price{}, fmt.Errorf("price net: %w", err)
	}
	vat, err := minorUnits(p.Vat)
	if err != nil {
		return carrier.Price{}, fmt.Errorf("price vat: %w", err)
	}
	return carrier.Price{Gross: gross, Net: net, Vat: vat, Currency: p.Currency}, nil
}

// minorUnits converts a decimal amount such as "49.95" to 4995 without going
// through float64. Fractions beyond two digits are rounded half away from zero.
func minorUnits(n json.Number) (int64, error) {
	raw := strings.TrimSpace(n.String())
	if raw == "" {
		return 0, nil
	}
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	frac += "000"
	units, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", n.String())
	}
	if _, err := strconv.ParseUint(frac[2:], 10, 64); err != nil {
		return 0, fmt.Errorf("invalid amount %q", n.String())
	}
	if frac[2] >= '5' {
		units++
	}
	if negative {
		units = -units
	}
	return units, nil
}
