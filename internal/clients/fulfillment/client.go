package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/clients"
	"fulfillment-connector-service/internal/models"
)

const tokenRefreshMargin = 5 * time.Minute

// Config holds fulfillment API credentials and endpoints.
type Config struct {
	BaseURL           string
	IdentityURL       string // OAuth2 token endpoint, separate from the API host
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	AccessKeyID       string
	SecretKey         string
	Region            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls the remote warehousing provider's API. Requests carry a
// short-lived OAuth2 access token plus the provider's AWS-style signature.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	identityURL  string
	clientID     string
	clientSecret string
	signer       *Signer
	retry        *clients.RetryPolicy
	breaker      *clients.CircuitBreaker
	rateLimiter  *rate.Limiter
	logger       *logrus.Entry

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
}

var _ clients.FulfillmentAPI = (*Client)(nil)

// NewClient creates a fulfillment client.
func NewClient(cfg Config, logger *logrus.Entry) *Client {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = 5
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		identityURL:  cfg.IdentityURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		signer: &Signer{
			AccessKeyID: cfg.AccessKeyID,
			SecretKey:   cfg.SecretKey,
			Region:      region,
			Service:     "fulfillment",
		},
		retry:       clients.DefaultRetryPolicy(),
		breaker:     clients.NewCircuitBreaker(5, 30*time.Second),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:      logger.WithField("client", "fulfillment"),
	}
}

// SetRetryPolicy overrides the default retry policy.
func (c *Client) SetRetryPolicy(p *clients.RetryPolicy) {
	c.retry = p
}

// TestConnection verifies the connection is working.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/v1/account", nil, nil)
	return err
}

// RefreshAccessToken exchanges the refresh token against the identity
// endpoint for a new short-lived access token.
func (c *Client) RefreshAccessToken(ctx context.Context) (*clients.TokenResult, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.identityURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "failed to build token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.CodeNetworkError, "token refresh failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.FromHTTPStatus(resp.StatusCode, apperrors.CodeAuthenticationFailed, truncateBody(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "malformed token response: %v", err)
	}

	expiresAt := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	c.mu.Lock()
	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = expiresAt
	c.mu.Unlock()

	c.logger.WithField("expiresAt", expiresAt).Debug("fulfillment access token refreshed")

	return &clients.TokenResult{AccessToken: tokenResp.AccessToken, ExpiresAt: expiresAt}, nil
}

// CreateOrder submits a fulfillment request. The source order id is sent as
// the provider-side external order id, which the provider deduplicates on, so
// resubmitting the same order has idempotent effect.
func (c *Client) CreateOrder(ctx context.Context, fr *models.FulfillmentRequest) (*models.FulfillmentOrder, error) {
	if fr == nil || fr.ExternalOrderID == "" {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "fulfillment request requires an external order id")
	}

	payload := map[string]interface{}{
		"external_order_id": fr.ExternalOrderID,
		"shipping_speed":    string(fr.Speed),
		"comment":           fr.Comment,
		"address": map[string]string{
			"name":          fr.Address.Name,
			"address_line1": fr.Address.AddressLine1,
			"address_line2": fr.Address.AddressLine2,
			"city":          fr.Address.City,
			"state":         fr.Address.State,
			"postal_code":   fr.Address.PostalCode,
			"country_code":  fr.Address.CountryCode,
			"phone":         fr.Address.Phone,
		},
	}
	items := make([]map[string]interface{}, 0, len(fr.Items))
	for _, item := range fr.Items {
		wire := map[string]interface{}{
			"sku":      item.SKU,
			"quantity": item.Quantity,
		}
		if item.DeclaredValue != nil {
			wire["declared_value"] = *item.DeclaredValue
		}
		items = append(items, wire)
	}
	payload["items"] = items

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", nil, payload)
	if err != nil {
		return nil, err
	}

	var wo wireOrder
	if err := json.Unmarshal(body, &wo); err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "malformed create order response: %v", err)
	}
	return wo.toFulfillmentOrder(), nil
}

// GetOrder fetches a fulfillment order by the provider's id.
func (c *Client) GetOrder(ctx context.Context, fulfillmentOrderID string) (*models.FulfillmentOrder, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(fulfillmentOrderID), nil, nil)
	if err != nil {
		return nil, err
	}

	var wo wireOrder
	if err := json.Unmarshal(body, &wo); err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "malformed order response: %v", err)
	}
	return wo.toFulfillmentOrder(), nil
}

// GetTracking fetches package tracking for a fulfillment order.
func (c *Client) GetTracking(ctx context.Context, fulfillmentOrderID string) ([]models.Shipment, error) {
	path := fmt.Sprintf("/v1/orders/%s/shipments", url.PathEscape(fulfillmentOrderID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Shipments []wireShipment `json:"shipments"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "malformed shipments response: %v", err)
	}

	shipments := make([]models.Shipment, 0, len(resp.Shipments))
	for _, ws := range resp.Shipments {
		shipments = append(shipments, ws.toShipment())
	}
	return shipments, nil
}

// GetInventory returns available quantities for the given SKUs.
func (c *Client) GetInventory(ctx context.Context, skus []string) (map[string]int, error) {
	params := url.Values{}
	params.Set("skus", strings.Join(skus, ","))

	body, err := c.doRequest(ctx, http.MethodGet, "/v1/inventory", params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []struct {
			SKU       string `json:"sku"`
			Available int    `json:"available"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "malformed inventory response: %v", err)
	}

	result := make(map[string]int, len(resp.Items))
	for _, item := range resp.Items {
		result[item.SKU] = item.Available
	}
	return result, nil
}

// doRequest runs an authenticated, signed, retried request and returns the
// response body.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, apperrors.NewRetryable(apperrors.CodeFulfillmentAPIError, "fulfillment circuit breaker open")
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "failed to encode request body: %v", err)
		}
	}

	var respBody []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		if err := c.ensureToken(ctx); err != nil {
			return err
		}

		var err error
		respBody, err = c.send(ctx, method, path, params, body)
		return err
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}

	c.breaker.RecordSuccess()
	return respBody, nil
}

// ensureToken refreshes the access token proactively when it is within the
// safety margin of expiry.
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	fresh := c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenRefreshMargin))
	c.mu.Unlock()

	if fresh {
		return nil
	}
	_, err := c.RefreshAccessToken(ctx)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeFulfillmentAPIError, "failed to build request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	req.Header.Set("x-fw-access-token", c.accessToken)
	c.mu.Unlock()

	// Sign immediately before transmission.
	c.signer.Sign(req, body, time.Now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.CodeNetworkError, "fulfillment request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.CodeNetworkError, "failed to read fulfillment response: %v", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := apperrors.FromHTTPStatus(resp.StatusCode, apperrors.CodeFulfillmentAPIError, truncateBody(respBody))
		apiErr.RetryAfter = clients.ParseRetryAfter(resp)
		return nil, apiErr
	}

	return respBody, nil
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

// wireOrder is the provider's order response shape.
type wireOrder struct {
	ID              string         `json:"id"`
	ExternalOrderID string         `json:"external_order_id"`
	Status          string         `json:"status"`
	Shipments       []wireShipment `json:"shipments"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

type wireShipment struct {
	ID             string     `json:"id"`
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	TrackingURL    string     `json:"tracking_url"`
	ShippedAt      *time.Time `json:"shipped_at"`
}

func (wo *wireOrder) toFulfillmentOrder() *models.FulfillmentOrder {
	order := &models.FulfillmentOrder{
		ID:              wo.ID,
		ExternalOrderID: wo.ExternalOrderID,
		Status:          models.FulfillmentOrderStatus(strings.ToUpper(wo.Status)),
		CreatedAt:       wo.CreatedAt,
		UpdatedAt:       wo.UpdatedAt,
	}
	for _, ws := range wo.Shipments {
		order.Shipments = append(order.Shipments, ws.toShipment())
	}
	return order
}

func (ws wireShipment) toShipment() models.Shipment {
	return models.Shipment{
		ID:             ws.ID,
		Carrier:        ws.Carrier,
		TrackingNumber: ws.TrackingNumber,
		TrackingURL:    ws.TrackingURL,
		ShippedAt:      ws.ShippedAt,
	}
}
