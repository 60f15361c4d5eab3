package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fulfillment-connector-service/internal/apperrors"
)

// respondError writes a typed error as a JSON response, mapping the error code
// to an HTTP status. Upstream API failures surface as 502 so callers can tell
// a remote outage apart from a bad request.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeOf(err)

	switch code {
	case apperrors.CodeValidationFailed, apperrors.CodeInvalidAddress, apperrors.CodeInvalidProductSKU:
		status = http.StatusBadRequest
	case apperrors.CodeInsufficientInventory, apperrors.CodeTrackingAlreadySynced:
		status = http.StatusConflict
	case apperrors.CodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case apperrors.CodeAuthenticationFailed:
		status = http.StatusBadGateway
	case apperrors.CodeNetworkError, apperrors.CodeMarketplaceAPIError, apperrors.CodeFulfillmentAPIError:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"error":     err.Error(),
		"code":      string(code),
		"retryable": apperrors.IsRetryable(err),
	})
}
