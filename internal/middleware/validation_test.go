package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingPayload struct {
	Title      string   `json:"title" validate:"required,max=10"`
	Price      *float64 `json:"price" validate:"omitempty,gte=0"`
	RentPeriod *string  `json:"rent_period" validate:"omitempty,oneof=PER_HOUR PER_DAY"`
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"drill","price":5}`))
		var payload listingPayload
		require.NoError(t, DecodeAndValidate(req, &payload))
		assert.Equal(t, "drill", payload.Title)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":`))
		var payload listingPayload
		assert.Error(t, DecodeAndValidate(req, &payload))
	})

	t.Run("failing validation tags", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"price":-3}`))
		var payload listingPayload
		err := DecodeAndValidate(req, &payload)
		require.Error(t, err)

		formatted := FormatValidationErrors(err)
		require.Len(t, formatted, 2)

		byField := map[string]string{}
		for _, fe := range formatted {
			byField[fe.Field] = fe.Message
		}
		assert.Equal(t, "This field is required", byField["Title"])
		assert.Equal(t, "Value must be greater than or equal to 0", byField["Price"])
	})

	t.Run("oneof message names the choices", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"title":"drill","rent_period":"PER_WEEK"}`))
		var payload listingPayload
		err := DecodeAndValidate(req, &payload)
		require.Error(t, err)

		formatted := FormatValidationErrors(err)
		require.Len(t, formatted, 1)
		assert.Equal(t, "Must be one of: PER_HOUR PER_DAY", formatted[0].Message)
	})
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	formatted := FormatValidationErrors(assert.AnError)
	assert.Empty(t, formatted)
}
