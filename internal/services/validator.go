package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/models"
)

// Destination provider field limits. Longer values are truncated rather than
// rejected.
const (
	maxNameLen    = 64
	maxAddressLen = 96
	maxCityLen    = 48
	maxCommentLen = 500
)

// ValidatorConfig controls validation strictness.
type ValidatorConfig struct {
	// StrictPostal turns a malformed postal code from a warning into a hard
	// error.
	StrictPostal bool

	// RequirePhone rejects orders without a recipient phone number.
	RequirePhone bool

	// AllowedCountries restricts routing to the deployment's fulfillment
	// footprint. Empty means all countries are allowed.
	AllowedCountries []string

	// DefaultCallingCode is prepended to 10-digit phone numbers. Defaults
	// to "1".
	DefaultCallingCode string
}

// Validator checks structural completeness of source orders and normalizes
// the recipient address and contact fields.
type Validator struct {
	cfg     ValidatorConfig
	allowed map[string]bool
	logger  *logrus.Entry
}

// NewValidator creates a validator.
func NewValidator(cfg ValidatorConfig, logger *logrus.Entry) *Validator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.DefaultCallingCode == "" {
		cfg.DefaultCallingCode = "1"
	}
	var allowed map[string]bool
	if len(cfg.AllowedCountries) > 0 {
		allowed = make(map[string]bool, len(cfg.AllowedCountries))
		for _, c := range cfg.AllowedCountries {
			allowed[strings.ToUpper(strings.TrimSpace(c))] = true
		}
	}
	return &Validator{cfg: cfg, allowed: allowed, logger: logger.WithField("component", "validator")}
}

// Validate produces a normalized order plus warnings, or a typed
// validation error listing every failing field.
func (v *Validator) Validate(order *models.SourceOrder) (*models.NormalizedOrder, []string, error) {
	if order == nil {
		return nil, nil, apperrors.New(apperrors.CodeValidationFailed, "order is nil")
	}

	var fieldErrs []models.FieldError
	var warnings []string

	if order.ID == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "id", Message: "order id is required"})
	}
	if !order.Status.ReadyToShip() {
		fieldErrs = append(fieldErrs, models.FieldError{
			Field:   "status",
			Message: fmt.Sprintf("order status %q is not ready to ship", order.Status),
		})
	}

	if len(order.LineItems) == 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lineItems", Message: "at least one line item is required"})
	}
	for i, item := range order.LineItems {
		if item.SKU == "" {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   fmt.Sprintf("lineItems[%d].sku", i),
				Message: "catalog SKU is required",
			})
		}
		if item.Quantity <= 0 {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   fmt.Sprintf("lineItems[%d].quantity", i),
				Message: "quantity must be positive",
			})
		}
	}

	addr, addrWarnings, addrErrs := v.NormalizeAddress(order.Recipient)
	warnings = append(warnings, addrWarnings...)

	if len(addrErrs) > 0 && len(fieldErrs) == 0 {
		// Structural checks passed; the failure is specifically the address.
		return nil, warnings, v.fieldError(apperrors.CodeInvalidAddress, addrErrs)
	}
	fieldErrs = append(fieldErrs, addrErrs...)
	if len(fieldErrs) > 0 {
		return nil, warnings, v.fieldError(apperrors.CodeValidationFailed, fieldErrs)
	}

	normalized := &models.NormalizedOrder{
		ID:             order.ID,
		Status:         order.Status,
		Address:        addr,
		Items:          append([]models.SourceLineItem(nil), order.LineItems...),
		ShippingOption: order.ShippingOption,
		BuyerNote:      strings.TrimSpace(order.BuyerNote),
		SellerNote:     strings.TrimSpace(order.SellerNote),
	}
	return normalized, warnings, nil
}

func (v *Validator) fieldError(code apperrors.Code, fieldErrs []models.FieldError) error {
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fe.String())
	}
	return apperrors.New(code, "%s", strings.Join(parts, "; "))
}

// NormalizeAddress maps a raw recipient to the fulfillment provider's address
// form. Normalization is idempotent: normalizing an already-normalized
// address yields the same result.
func (v *Validator) NormalizeAddress(rec models.SourceRecipient) (models.NormalizedAddress, []string, []models.FieldError) {
	var warnings []string
	var fieldErrs []models.FieldError

	addr := models.NormalizedAddress{
		Name:         truncate(collapseSpace(rec.Name), maxNameLen),
		AddressLine1: truncate(collapseSpace(rec.AddressLine1), maxAddressLen),
		AddressLine2: truncate(collapseSpace(rec.AddressLine2), maxAddressLen),
		City:         truncate(collapseSpace(rec.City), maxCityLen),
		State:        collapseSpace(rec.State),
		PostalCode:   strings.ToUpper(collapseSpace(rec.PostalCode)),
		CountryCode:  strings.ToUpper(collapseSpace(rec.CountryCode)),
	}

	// Fall back to parsing the unstructured full-address string when the
	// structured line is absent.
	if addr.AddressLine1 == "" && rec.FullAddress != "" {
		parsed := parseFullAddress(rec.FullAddress)
		if addr.AddressLine1 == "" {
			addr.AddressLine1 = truncate(parsed.AddressLine1, maxAddressLen)
		}
		if addr.AddressLine2 == "" {
			addr.AddressLine2 = truncate(parsed.AddressLine2, maxAddressLen)
		}
		if addr.City == "" {
			addr.City = truncate(parsed.City, maxCityLen)
		}
		if addr.State == "" {
			addr.State = parsed.State
		}
		if addr.PostalCode == "" {
			addr.PostalCode = strings.ToUpper(parsed.PostalCode)
		}
		if addr.CountryCode == "" {
			addr.CountryCode = strings.ToUpper(parsed.CountryCode)
		}
	}

	if addr.Name == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "recipient.name", Message: "recipient name is required"})
	}
	if addr.AddressLine1 == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "recipient.addressLine1", Message: "address line is required"})
	}
	if addr.PostalCode == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "recipient.postalCode", Message: "postal code is required"})
	}
	if addr.CountryCode == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "recipient.countryCode", Message: "country code is required"})
	}

	if addr.CountryCode != "" && v.allowed != nil && !v.allowed[addr.CountryCode] {
		fieldErrs = append(fieldErrs, models.FieldError{
			Field:   "recipient.countryCode",
			Message: fmt.Sprintf("country %s is outside the fulfillment footprint", addr.CountryCode),
		})
	}

	// Expand full state names for countries that use abbreviations.
	addr.State = normalizeState(addr.State, addr.CountryCode)

	if addr.PostalCode != "" {
		normalized, ok := normalizePostalCode(addr.PostalCode, addr.CountryCode)
		if ok {
			addr.PostalCode = normalized
		} else if v.cfg.StrictPostal {
			fieldErrs = append(fieldErrs, models.FieldError{
				Field:   "recipient.postalCode",
				Message: fmt.Sprintf("postal code %q is malformed for country %s", addr.PostalCode, addr.CountryCode),
			})
		} else {
			warnings = append(warnings, fmt.Sprintf("postal code %q does not match the expected format for %s", addr.PostalCode, addr.CountryCode))
		}
	}

	phone := normalizePhone(rec.Phone, v.cfg.DefaultCallingCode)
	if phone == "" && v.cfg.RequirePhone {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "recipient.phone", Message: "phone number is required"})
	}
	addr.Phone = phone

	return addr, warnings, fieldErrs
}

var spaceRe = regexp.MustCompile(`\s+`)

// collapseSpace trims and collapses internal whitespace runs to single
// spaces.
func collapseSpace(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}

// usStates maps full US state names (lowercase) to USPS abbreviations.
var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN",
	"iowa": "IA", "kansas": "KS", "kentucky": "KY", "louisiana": "LA",
	"maine": "ME", "maryland": "MD", "massachusetts": "MA", "michigan": "MI",
	"minnesota": "MN", "mississippi": "MS", "missouri": "MO", "montana": "MT",
	"nebraska": "NE", "nevada": "NV", "new hampshire": "NH", "new jersey": "NJ",
	"new mexico": "NM", "new york": "NY", "north carolina": "NC",
	"north dakota": "ND", "ohio": "OH", "oklahoma": "OK", "oregon": "OR",
	"pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// caProvinces maps full Canadian province names (lowercase) to postal
// abbreviations.
var caProvinces = map[string]string{
	"alberta": "AB", "british columbia": "BC", "manitoba": "MB",
	"new brunswick": "NB", "newfoundland and labrador": "NL",
	"northwest territories": "NT", "nova scotia": "NS", "nunavut": "NU",
	"ontario": "ON", "prince edward island": "PE", "quebec": "QC",
	"saskatchewan": "SK", "yukon": "YT",
}

// normalizeState expands a full state or province name to its standard
// abbreviation for countries that use them. Already-abbreviated input is
// returned upper-cased.
func normalizeState(state, countryCode string) string {
	state = collapseSpace(state)
	if state == "" {
		return ""
	}

	var table map[string]string
	switch countryCode {
	case "US":
		table = usStates
	case "CA":
		table = caProvinces
	default:
		return state
	}

	if abbr, ok := table[strings.ToLower(state)]; ok {
		return abbr
	}
	if len(state) == 2 {
		return strings.ToUpper(state)
	}
	return state
}

var (
	usZipRe      = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	caPostalRe   = regexp.MustCompile(`^[A-Z]\d[A-Z]\s?\d[A-Z]\d$`)
	ukPostcodeRe = regexp.MustCompile(`^[A-Z0-9]{2,4}\s?[A-Z0-9]{3}$`)
)

// normalizePostalCode validates and canonicalizes a postal code per country.
// Countries without a known format pass through unvalidated.
func normalizePostalCode(code, countryCode string) (string, bool) {
	code = strings.ToUpper(collapseSpace(code))

	switch countryCode {
	case "US":
		return code, usZipRe.MatchString(code)
	case "CA":
		if !caPostalRe.MatchString(code) {
			return code, false
		}
		compact := strings.ReplaceAll(code, " ", "")
		return compact[:3] + " " + compact[3:], true
	case "GB", "UK":
		return code, ukPostcodeRe.MatchString(code)
	default:
		return code, true
	}
}

var digitsRe = regexp.MustCompile(`\D`)

// normalizePhone canonicalizes 10- and 11-digit phone numbers to a single
// international format, defaulting the country calling code when absent.
// Numbers of other lengths pass through trimmed.
func normalizePhone(phone, defaultCallingCode string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	digits := digitsRe.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 10:
		return "+" + defaultCallingCode + digits
	case len(digits) == 11 && strings.HasPrefix(digits, defaultCallingCode):
		return "+" + digits
	default:
		return phone
	}
}

// parseFullAddress splits an unstructured full-address string into its
// components. Expected shape: "line1[, line2], city, state postal[, country]".
func parseFullAddress(full string) models.SourceRecipient {
	var rec models.SourceRecipient

	parts := strings.Split(full, ",")
	for i := range parts {
		parts[i] = collapseSpace(parts[i])
	}

	// A trailing two-letter token is treated as a country code.
	if len(parts) >= 4 && len(parts[len(parts)-1]) == 2 {
		rec.CountryCode = strings.ToUpper(parts[len(parts)-1])
		parts = parts[:len(parts)-1]
	}

	switch len(parts) {
	case 0:
		return rec
	case 1:
		rec.AddressLine1 = parts[0]
		return rec
	case 2:
		rec.AddressLine1 = parts[0]
		rec.City = parts[1]
		return rec
	case 3:
		rec.AddressLine1 = parts[0]
	default:
		rec.AddressLine1 = parts[0]
		rec.AddressLine2 = strings.Join(parts[1:len(parts)-2], ", ")
	}

	rec.City = parts[len(parts)-2]

	// The last segment carries "state postal", e.g. "IL 62704".
	tail := strings.Fields(parts[len(parts)-1])
	if len(tail) == 1 {
		rec.State = tail[0]
	} else if len(tail) > 1 {
		rec.PostalCode = tail[len(tail)-1]
		rec.State = strings.Join(tail[:len(tail)-1], " ")
	}
	return rec
}
