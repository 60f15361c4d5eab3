package marketplace

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/clients"
	"fulfillment-connector-service/internal/models"
)

// tokenRefreshMargin is how long before expiry the access token is refreshed.
const tokenRefreshMargin = 5 * time.Minute

// Config holds marketplace API credentials and endpoints.
type Config struct {
	BaseURL           string
	AppKey            string
	AppSecret         string
	AccessToken       string
	RefreshToken      string
	TokenExpiry       time.Time
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls the source marketplace's order API. Every request is signed
// with the marketplace's HMAC scheme and wrapped by the retry policy.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	appKey      string
	appSecret   string
	retry       *clients.RetryPolicy
	breaker     *clients.CircuitBreaker
	rateLimiter *rate.Limiter
	logger      *logrus.Entry

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
}

var _ clients.MarketplaceAPI = (*Client)(nil)

// NewClient creates a marketplace client.
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
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		appKey:       cfg.AppKey,
		appSecret:    cfg.AppSecret,
		accessToken:  cfg.AccessToken,
		refreshToken: cfg.RefreshToken,
		tokenExpiry:  cfg.TokenExpiry,
		retry:        clients.DefaultRetryPolicy(),
		breaker:      clients.NewCircuitBreaker(5, 30*time.Second),
		rateLimiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:       logger.WithField("client", "marketplace"),
	}
}

// SetRetryPolicy overrides the default retry policy.
func (c *Client) SetRetryPolicy(p *clients.RetryPolicy) {
	c.retry = p
}

// TestConnection verifies the connection is working.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/orders", url.Values{"page_size": []string{"1"}}, nil)
	return err
}

// RefreshAccessToken exchanges the refresh token for a new access token. The
// refresh request is signed the same way as every other request.
func (c *Client) RefreshAccessToken(ctx context.Context) (*clients.TokenResult, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()

	payload := map[string]string{
		"app_key":       c.appKey,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}
	body, err := c.doSigned(ctx, http.MethodPost, "/api/token/refresh", nil, payload, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "malformed token response: %v", err)
	}
	if resp.AccessToken == "" {
		return nil, apperrors.New(apperrors.CodeAuthenticationFailed, "token refresh returned empty access token")
	}

	expiresAt := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.tokenExpiry = expiresAt
	c.mu.Unlock()

	c.logger.WithField("expiresAt", expiresAt).Debug("marketplace access token refreshed")

	return &clients.TokenResult{AccessToken: resp.AccessToken, ExpiresAt: expiresAt}, nil
}

// ListOrders returns one page of orders matching the filter.
func (c *Client) ListOrders(ctx context.Context, opts *clients.OrderListOptions) (*clients.OrdersPage, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Status != "" {
			params.Set("status", string(opts.Status))
		}
		if !opts.CreatedAfter.IsZero() {
			params.Set("created_after", opts.CreatedAfter.Format(time.RFC3339))
		}
		if opts.PageSize > 0 {
			params.Set("page_size", strconv.Itoa(opts.PageSize))
		}
		if opts.PageToken != "" {
			params.Set("page_token", opts.PageToken)
		}
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/api/orders", params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Orders        []wireOrder `json:"orders"`
		NextPageToken string      `json:"next_page_token"`
		HasMore       bool        `json:"has_more"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "malformed order list response: %v", err)
	}

	page := &clients.OrdersPage{
		NextPageToken: resp.NextPageToken,
		HasMore:       resp.HasMore,
	}
	for _, wo := range resp.Orders {
		page.Orders = append(page.Orders, *wo.toSourceOrder())
	}
	return page, nil
}

// GetOrder fetches a single order snapshot by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.SourceOrder, error) {
	if orderID == "" {
		return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "order id is required")
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, nil)
	if err != nil {
		return nil, err
	}

	var wo wireOrder
	if err := json.Unmarshal(body, &wo); err != nil {
		return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "malformed order response: %v", err)
	}
	return wo.toSourceOrder(), nil
}

// UpdateTracking writes carrier and tracking number back to an order.
func (c *Client) UpdateTracking(ctx context.Context, update *clients.TrackingUpdate) error {
	if update == nil || update.OrderID == "" {
		return apperrors.New(apperrors.CodeMarketplaceAPIError, "tracking update requires an order id")
	}

	path := fmt.Sprintf("/api/orders/%s/tracking", url.PathEscape(update.OrderID))
	_, err := c.doRequest(ctx, http.MethodPost, path, nil, update)
	return err
}

// doRequest runs an authenticated, signed, retried request and returns the
// response body.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload interface{}) ([]byte, error) {
	return c.doSigned(ctx, method, path, params, payload, true)
}

func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, payload interface{}, withToken bool) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, apperrors.NewRetryable(apperrors.CodeMarketplaceAPIError, "marketplace circuit breaker open")
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "failed to encode request body: %v", err)
		}
	}

	var respBody []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		if withToken {
			if err := c.ensureToken(ctx); err != nil {
				return err
			}
		}

		var err error
		respBody, err = c.send(ctx, method, path, params, body, withToken)
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
// safety margin of expiry. Refresh is never deferred to a 401.
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

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body []byte, withToken bool) ([]byte, error) {
	fullURL := c.baseURL + path
	query := canonicalQuery(params)
	if query != "" {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeMarketplaceAPIError, "failed to build request: %v", err)
	}

	// Sign immediately before transmission.
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-App-Key", c.appKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", c.sign(timestamp, path, query, body))
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		c.mu.Lock()
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		c.mu.Unlock()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.CodeNetworkError, "marketplace request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewRetryable(apperrors.CodeNetworkError, "failed to read marketplace response: %v", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := apperrors.FromHTTPStatus(resp.StatusCode, apperrors.CodeMarketplaceAPIError, truncateBody(respBody))
		apiErr.RetryAfter = clients.ParseRetryAfter(resp)
		return nil, apiErr
	}

	return respBody, nil
}

// sign computes the request signature: HMAC-SHA256 over the concatenation of
// app key, Unix timestamp, request path, canonical query string and body,
// keyed by the app secret, hex encoded.
func (c *Client) sign(timestamp, path, query string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write([]byte(c.appKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(path))
	mac.Write([]byte(query))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery renders params as sorted key=value pairs joined by "&".
func canonicalQuery(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range params[k] {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}

// wireOrder is the marketplace's order response shape.
type wireOrder struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Recipient struct {
		Name         string `json:"name"`
		Phone        string `json:"phone"`
		Email        string `json:"email"`
		AddressLine1 string `json:"address_line1"`
		AddressLine2 string `json:"address_line2"`
		City         string `json:"city"`
		State        string `json:"state"`
		PostalCode   string `json:"postal_code"`
		CountryCode  string `json:"country_code"`
		FullAddress  string `json:"full_address"`
	} `json:"recipient"`
	LineItems []struct {
		ID        string  `json:"id"`
		SKU       string  `json:"sku"`
		Name      string  `json:"name"`
		Quantity  int     `json:"quantity"`
		UnitPrice float64 `json:"unit_price"`
		Tax       float64 `json:"tax"`
	} `json:"line_items"`
	Currency       string    `json:"currency"`
	SubtotalPrice  float64   `json:"subtotal_price"`
	TotalTax       float64   `json:"total_tax"`
	TotalShipping  float64   `json:"total_shipping"`
	TotalPrice     float64   `json:"total_price"`
	ShippingOption string    `json:"shipping_option"`
	BuyerNote      string    `json:"buyer_note"`
	SellerNote     string    `json:"seller_note"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (wo *wireOrder) toSourceOrder() *models.SourceOrder {
	order := &models.SourceOrder{
		ID:             wo.ID,
		Status:         models.OrderStatus(strings.ToUpper(wo.Status)),
		Currency:       wo.Currency,
		SubtotalPrice:  wo.SubtotalPrice,
		TotalTax:       wo.TotalTax,
		TotalShipping:  wo.TotalShipping,
		TotalPrice:     wo.TotalPrice,
		ShippingOption: wo.ShippingOption,
		BuyerNote:      wo.BuyerNote,
		SellerNote:     wo.SellerNote,
		CreatedAt:      wo.CreatedAt,
		UpdatedAt:      wo.UpdatedAt,
		Recipient: models.SourceRecipient{
			Name:         wo.Recipient.Name,
			Phone:        wo.Recipient.Phone,
			Email:        wo.Recipient.Email,
			AddressLine1: wo.Recipient.AddressLine1,
			AddressLine2: wo.Recipient.AddressLine2,
			City:         wo.Recipient.City,
			State:        wo.Recipient.State,
			PostalCode:   wo.Recipient.PostalCode,
			CountryCode:  wo.Recipient.CountryCode,
			FullAddress:  wo.Recipient.FullAddress,
		},
	}
	for _, li := range wo.LineItems {
		order.LineItems = append(order.LineItems, models.SourceLineItem{
			ID:        li.ID,
			SKU:       li.SKU,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Tax:       li.Tax,
		})
	}
	return order
}
