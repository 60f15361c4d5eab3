package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fulfillment-connector-service/internal/apperrors"
	"fulfillment-connector-service/internal/models"
)

func testOrder() *models.SourceOrder {
	return &models.SourceOrder{
		ID:     "ORD-1001",
		Status: models.OrderStatusAwaitingShipment,
		Recipient: models.SourceRecipient{
			Name:         "Jane Smith",
			Phone:        "(555) 123-4567",
			AddressLine1: "123 Main St",
			City:         "Sacramento",
			State:        "California",
			PostalCode:   "94203",
			CountryCode:  "US",
		},
		LineItems: []models.SourceLineItem{
			{ID: "li-1", SKU: "WIDGET-1", Quantity: 2, UnitPrice: 19.99},
		},
		ShippingOption: "Standard Shipping",
	}
}

// ===========================================
// Validate Tests
// ===========================================

func TestValidate_Success(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	normalized, warnings, err := v.Validate(testOrder())

	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Empty(t, warnings)
	assert.Equal(t, "ORD-1001", normalized.ID)
	assert.Equal(t, "CA", normalized.Address.State)
	assert.Equal(t, "+15551234567", normalized.Address.Phone)
	assert.Equal(t, "94203", normalized.Address.PostalCode)
}

func TestValidate_RejectsNotReadyToShip(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	for _, status := range []models.OrderStatus{
		models.OrderStatusAwaitingPayment,
		models.OrderStatusInTransit,
		models.OrderStatusDelivered,
		models.OrderStatusCancelled,
		models.OrderStatusCompleted,
	} {
		order := testOrder()
		order.Status = status

		_, _, err := v.Validate(order)

		require.Error(t, err, "status %s", status)
		assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
	}
}

func TestValidate_AcceptsPartiallyShipped(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	order := testOrder()
	order.Status = models.OrderStatusPartiallyShipped

	_, _, err := v.Validate(order)
	assert.NoError(t, err)
}

func TestValidate_RejectsEmptyLineItems(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	order := testOrder()
	order.LineItems = nil

	_, _, err := v.Validate(order)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "lineItems")
}

func TestValidate_RejectsInvalidLineItem(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	order := testOrder()
	order.LineItems = []models.SourceLineItem{
		{ID: "li-1", SKU: "", Quantity: 0},
	}

	_, _, err := v.Validate(order)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sku")
	assert.Contains(t, err.Error(), "quantity")
}

func TestValidate_AddressOnlyFailureIsInvalidAddress(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	order := testOrder()
	order.Recipient.AddressLine1 = ""
	order.Recipient.FullAddress = ""

	_, _, err := v.Validate(order)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidAddress, apperrors.CodeOf(err))
}

func TestValidate_CountryOutsideFootprint(t *testing.T) {
	v := NewValidator(ValidatorConfig{AllowedCountries: []string{"US", "CA"}}, nil)

	order := testOrder()
	order.Recipient.CountryCode = "DE"
	order.Recipient.State = ""
	order.Recipient.PostalCode = "10115"

	_, _, err := v.Validate(order)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DE")
}

// ===========================================
// Address Normalization Tests
// ===========================================

func TestNormalizeAddress_StateNameExpansion(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	cases := []struct {
		state   string
		country string
		want    string
	}{
		{"California", "US", "CA"},
		{"california", "US", "CA"},
		{"New   York", "US", "NY"},
		{"tx", "US", "TX"},
		{"British Columbia", "CA", "BC"},
		{"Bavaria", "DE", "Bavaria"},
	}
	for _, tc := range cases {
		addr, _, errs := v.NormalizeAddress(models.SourceRecipient{
			Name:         "Jane Smith",
			AddressLine1: "1 Test Way",
			City:         "Testville",
			State:        tc.state,
			PostalCode:   "90210",
			CountryCode:  tc.country,
		})
		assert.Empty(t, errs)
		assert.Equal(t, tc.want, addr.State, "state %q country %q", tc.state, tc.country)
	}
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	rec := testOrder().Recipient
	first, _, errs := v.NormalizeAddress(rec)
	require.Empty(t, errs)

	second, _, errs := v.NormalizeAddress(models.SourceRecipient{
		Name:         first.Name,
		Phone:        first.Phone,
		AddressLine1: first.AddressLine1,
		AddressLine2: first.AddressLine2,
		City:         first.City,
		State:        first.State,
		PostalCode:   first.PostalCode,
		CountryCode:  first.CountryCode,
	})
	require.Empty(t, errs)
	assert.Equal(t, first, second)
}

func TestNormalizeAddress_WhitespaceCollapse(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	addr, _, errs := v.NormalizeAddress(models.SourceRecipient{
		Name:         "  Jane   Smith  ",
		AddressLine1: " 123   Main  St ",
		City:         "Sacramento",
		State:        "CA",
		PostalCode:   " 94203 ",
		CountryCode:  " us ",
	})

	require.Empty(t, errs)
	assert.Equal(t, "Jane Smith", addr.Name)
	assert.Equal(t, "123 Main St", addr.AddressLine1)
	assert.Equal(t, "US", addr.CountryCode)
}

func TestNormalizeAddress_Truncation(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	addr, _, errs := v.NormalizeAddress(models.SourceRecipient{
		Name:         strings.Repeat("a", 100),
		AddressLine1: strings.Repeat("b", 200),
		City:         strings.Repeat("c", 80),
		State:        "CA",
		PostalCode:   "94203",
		CountryCode:  "US",
	})

	require.Empty(t, errs)
	assert.Len(t, addr.Name, 64)
	assert.Len(t, addr.AddressLine1, 96)
	assert.Len(t, addr.City, 48)
}

func TestNormalizeAddress_FullAddressFallback(t *testing.T) {
	v := NewValidator(ValidatorConfig{}, nil)

	addr, _, errs := v.NormalizeAddress(models.SourceRecipient{
		Name:        "Jane Smith",
		FullAddress: "123 Main St, Apt 4, Springfield, Illinois 62704, US",
	})

	require.Empty(t, errs)
	assert.Equal(t, "123 Main St", addr.AddressLine1)
	assert.Equal(t, "Apt 4", addr.AddressLine2)
	assert.Equal(t, "Springfield", addr.City)
	assert.Equal(t, "IL", addr.State)
	assert.Equal(t, "62704", addr.PostalCode)
	assert.Equal(t, "US", addr.CountryCode)
}

// ===========================================
// Postal Code Tests
// ===========================================

func TestNormalizePostalCode(t *testing.T) {
	cases := []struct {
		code    string
		country string
		want    string
		ok      bool
	}{
		{"94203", "US", "94203", true},
		{"94203-1234", "US", "94203-1234", true},
		{"9420", "US", "9420", false},
		{"k1a0b1", "CA", "K1A 0B1", true},
		{"K1A 0B1", "CA", "K1A 0B1", true},
		{"12345", "CA", "12345", false},
		{"SW1A 1AA", "GB", "SW1A 1AA", true},
		{"75001", "FR", "75001", true},
	}
	for _, tc := range cases {
		got, ok := normalizePostalCode(tc.code, tc.country)
		assert.Equal(t, tc.ok, ok, "%s / %s", tc.code, tc.country)
		if ok {
			assert.Equal(t, tc.want, got)
		}
	}
}

func TestValidate_StrictPostalRejects(t *testing.T) {
	strict := NewValidator(ValidatorConfig{StrictPostal: true}, nil)
	lenient := NewValidator(ValidatorConfig{}, nil)

	order := testOrder()
	order.Recipient.PostalCode = "9420"

	_, _, err := strict.Validate(order)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidAddress, apperrors.CodeOf(err))

	_, warnings, err := lenient.Validate(order)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

// ===========================================
// Phone Tests
// ===========================================

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(555) 123-4567", "+15551234567"},
		{"555-123-4567", "+15551234567"},
		{"5551234567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"+44 20 7946 0958", "+44 20 7946 0958"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizePhone(tc.in, "1"), "input %q", tc.in)
	}
}

func TestValidate_RequirePhone(t *testing.T) {
	v := NewValidator(ValidatorConfig{RequirePhone: true}, nil)

	order := testOrder()
	order.Recipient.Phone = ""

	_, _, err := v.Validate(order)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone")
}
