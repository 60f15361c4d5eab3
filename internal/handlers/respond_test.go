package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-connector-service/internal/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRespond(err error) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, err)
	return w
}

// ===========================================
// Error Response Mapping Tests
// ===========================================

func TestRespondError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation failed", apperrors.New(apperrors.CodeValidationFailed, "missing items"), http.StatusBadRequest},
		{"invalid address", apperrors.New(apperrors.CodeInvalidAddress, "no postal code"), http.StatusBadRequest},
		{"invalid sku", apperrors.New(apperrors.CodeInvalidProductSKU, "unknown sku"), http.StatusBadRequest},
		{"insufficient inventory", apperrors.New(apperrors.CodeInsufficientInventory, "short"), http.StatusConflict},
		{"already synced", apperrors.New(apperrors.CodeTrackingAlreadySynced, "done"), http.StatusConflict},
		{"rate limited", apperrors.NewRetryable(apperrors.CodeRateLimitExceeded, "slow down"), http.StatusTooManyRequests},
		{"auth failed", apperrors.New(apperrors.CodeAuthenticationFailed, "rejected"), http.StatusBadGateway},
		{"marketplace down", apperrors.NewRetryable(apperrors.CodeMarketplaceAPIError, "outage"), http.StatusBadGateway},
		{"fulfillment down", apperrors.NewRetryable(apperrors.CodeFulfillmentAPIError, "outage"), http.StatusBadGateway},
		{"network error", apperrors.NewRetryable(apperrors.CodeNetworkError, "reset"), http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRespond(tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRespondError_BodyShape(t *testing.T) {
	w := doRespond(apperrors.NewRetryable(apperrors.CodeRateLimitExceeded, "remote API rate limit exceeded"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "rate_limit_exceeded", body["code"])
	assert.Equal(t, true, body["retryable"])
	assert.Contains(t, body["error"], "rate limit")
}

func TestRespondError_WrappedErrorKeepsCode(t *testing.T) {
	cause := apperrors.New(apperrors.CodeInvalidAddress, "postal code missing")
	w := doRespond(apperrors.Wrap(apperrors.CodeInvalidAddress, cause, "order validation failed"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
