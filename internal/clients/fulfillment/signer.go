package fulfillment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingAlgorithm = "FW4-HMAC-SHA256"
	credentialSuffix = "fw4_request"
	amzDateFormat    = "20060102T150405Z"
	shortDateFormat  = "20060102"
)

// Signer implements the fulfillment provider's AWS-style four-step request
// signature: canonical request, string to sign, derived signing key, final
// HMAC. The Authorization header carries credential, signed headers and
// signature.
type Signer struct {
	AccessKeyID string
	SecretKey   string
	Region      string
	Service     string
}

// Sign adds the date and Authorization headers to req. The body hash must be
// the SHA-256 of the exact bytes that will be transmitted.
func (s *Signer) Sign(req *http.Request, body []byte, now time.Time) {
	now = now.UTC()
	amzDate := now.Format(amzDateFormat)
	shortDate := now.Format(shortDateFormat)

	req.Header.Set("x-fw-date", amzDate)
	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}

	canonicalReq, signedHeaders := s.canonicalRequest(req, body)
	stringToSign := s.stringToSign(amzDate, shortDate, canonicalReq)
	signingKey := s.deriveKey(shortDate)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	credential := s.AccessKeyID + "/" + s.credentialScope(shortDate)
	req.Header.Set("Authorization",
		signingAlgorithm+" Credential="+credential+
			", SignedHeaders="+signedHeaders+
			", Signature="+signature)
}

// canonicalRequest builds step one: method, path, canonical query, canonical
// headers, signed-headers list and the hex SHA-256 of the body.
func (s *Signer) canonicalRequest(req *http.Request, body []byte) (string, string) {
	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}

	headers := map[string]string{
		"host":      req.URL.Host,
		"x-fw-date": req.Header.Get("x-fw-date"),
	}
	if ct := req.Header.Get("Content-Type"); ct != "" {
		headers["content-type"] = ct
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteString(":")
		canonicalHeaders.WriteString(strings.TrimSpace(headers[name]))
		canonicalHeaders.WriteString("\n")
	}
	signedHeaders := strings.Join(names, ";")

	bodyHash := sha256.Sum256(body)

	canonical := strings.Join([]string{
		req.Method,
		path,
		canonicalQueryString(req.URL.Query()),
		canonicalHeaders.String(),
		signedHeaders,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")

	return canonical, signedHeaders
}

// stringToSign builds step two: algorithm id, timestamp, credential scope and
// the hash of the canonical request.
func (s *Signer) stringToSign(amzDate, shortDate, canonicalReq string) string {
	reqHash := sha256.Sum256([]byte(canonicalReq))
	return strings.Join([]string{
		signingAlgorithm,
		amzDate,
		s.credentialScope(shortDate),
		hex.EncodeToString(reqHash[:]),
	}, "\n")
}

// deriveKey builds step three: chained HMAC over date, region, service and
// the fixed suffix, seeded from the secret key.
func (s *Signer) deriveKey(shortDate string) []byte {
	kDate := hmacSHA256([]byte("FW4"+s.SecretKey), shortDate)
	kRegion := hmacSHA256(kDate, s.Region)
	kService := hmacSHA256(kRegion, s.Service)
	return hmacSHA256(kService, credentialSuffix)
}

func (s *Signer) credentialScope(shortDate string) string {
	return strings.Join([]string{shortDate, s.Region, s.Service, credentialSuffix}, "/")
}

func canonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(pairs, "&")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
