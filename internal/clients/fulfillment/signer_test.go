package fulfillment

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *Signer {
	return &Signer{
		AccessKeyID: "AKTEST123",
		SecretKey:   "test-secret",
		Region:      "us-east-1",
		Service:     "fulfillment",
	}
}

func signedRequest(t *testing.T, method, rawurl string, body []byte, now time.Time) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, rawurl, nil)
	require.NoError(t, err)
	testSigner().Sign(req, body, now)
	return req
}

func TestSign_SetsDateAndAuthorizationHeaders(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	req := signedRequest(t, http.MethodGet, "https://api.example.com/v1/account", nil, now)

	assert.Equal(t, "20260315T103000Z", req.Header.Get("x-fw-date"))

	auth := req.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "FW4-HMAC-SHA256 Credential=AKTEST123/20260315/us-east-1/fulfillment/fw4_request"))
	assert.Contains(t, auth, "SignedHeaders=host;x-fw-date")
	assert.Contains(t, auth, "Signature=")
}

func TestSign_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	body := []byte(`{"external_order_id":"ORD-1"}`)

	first := signedRequest(t, http.MethodPost, "https://api.example.com/v1/orders", body, now)
	second := signedRequest(t, http.MethodPost, "https://api.example.com/v1/orders", body, now)

	assert.Equal(t, first.Header.Get("Authorization"), second.Header.Get("Authorization"))
}

func TestSign_SignatureChangesWithInput(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	base := signedRequest(t, http.MethodGet, "https://api.example.com/v1/orders/FO-1", nil, now)

	// A different path, body, timestamp or secret must produce a different
	// signature.
	otherPath := signedRequest(t, http.MethodGet, "https://api.example.com/v1/orders/FO-2", nil, now)
	assert.NotEqual(t, base.Header.Get("Authorization"), otherPath.Header.Get("Authorization"))

	otherBody := signedRequest(t, http.MethodGet, "https://api.example.com/v1/orders/FO-1", []byte("x"), now)
	assert.NotEqual(t, base.Header.Get("Authorization"), otherBody.Header.Get("Authorization"))

	otherTime := signedRequest(t, http.MethodGet, "https://api.example.com/v1/orders/FO-1", nil, now.Add(time.Second))
	assert.NotEqual(t, base.Header.Get("Authorization"), otherTime.Header.Get("Authorization"))

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/orders/FO-1", nil)
	require.NoError(t, err)
	otherSigner := testSigner()
	otherSigner.SecretKey = "different-secret"
	otherSigner.Sign(req, nil, now)
	assert.NotEqual(t, base.Header.Get("Authorization"), req.Header.Get("Authorization"))
}

func TestSign_ContentTypeJoinsSignedHeaders(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/v1/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	testSigner().Sign(req, []byte("{}"), now)

	assert.Contains(t, req.Header.Get("Authorization"), "SignedHeaders=content-type;host;x-fw-date")
}

func TestCanonicalQueryString_SortedAndEscaped(t *testing.T) {
	query := url.Values{}
	query.Add("skus", "WH-B,WH-A")
	query.Add("b", "2")
	query.Add("a", "1")

	got := canonicalQueryString(query)

	assert.Equal(t, "a=1&b=2&skus=WH-B%2CWH-A", got)
}

func TestCanonicalQueryString_Empty(t *testing.T) {
	assert.Equal(t, "", canonicalQueryString(url.Values{}))
}
