package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productInput struct {
	Name     string  `json:"name" validate:"required,max=150"`
	Currency string  `json:"currency" validate:"required,iso4217"`
	Price    float64 `json:"price" validate:"gt=0"`
	Link     string  `json:"url" validate:"required,http_url"`
	Stock    int     `json:"inventory" validate:"gte=0,lte=1000000"`
}

func validProduct() productInput {
	return productInput{
		Name:     "Linen Shirt",
		Currency: "USD",
		Price:    19.99,
		Link:     "https://shop.example.com/p/linen-shirt",
		Stock:    4,
	}
}

func TestValidate_Success(t *testing.T) {
	err := Validate(validProduct())
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	p := validProduct()
	p.Name = ""
	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "name")
	assert.Equal(t, "is required", fields["name"])
}

func TestValidate_InvalidCurrency(t *testing.T) {
	p := validProduct()
	p.Currency = "DOLLARS"
	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be an ISO 4217 currency code", valErr.Fields()["currency"])
}

func TestValidate_InvalidURL(t *testing.T) {
	p := validProduct()
	p.Link = "not a url"
	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be a valid URL", valErr.Fields()["url"])
}

func TestValidate_OutOfRange(t *testing.T) {
	p := validProduct()
	p.Stock = 2000000
	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["inventory"], "1000000")
}

func TestValidate_PriceMustBePositive(t *testing.T) {
	p := validProduct()
	p.Price = 0
	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be greater than 0", valErr.Fields()["price"])
}

func TestValidate_MultipleErrors(t *testing.T) {
	err := Validate(productInput{Price: 1})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "currency")
	assert.Contains(t, fields, "url")
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(productInput{Price: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name'")
	assert.Contains(t, err.Error(), "is required")
}

type batchInput struct {
	Products []productInput `json:"products" validate:"required,min=1,max=2,dive"`
}

func TestValidate_NestedSliceFieldPath(t *testing.T) {
	bad := validProduct()
	bad.Price = -1
	err := Validate(batchInput{Products: []productInput{validProduct(), bad}})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, map[string]string{"products[1].price": "must be greater than 0"}, valErr.Fields())
}

func TestValidate_SliceLength(t *testing.T) {
	err := Validate(batchInput{Products: []productInput{validProduct(), validProduct(), validProduct()}})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must contain at most 2 items", valErr.Fields()["products"])
}

type minMaxStruct struct {
	Short string `validate:"min=3"`
	Long  string `validate:"max=5"`
}

func TestValidate_MinMax_FallsBackToFieldName(t *testing.T) {
	s := minMaxStruct{Short: "ab", Long: "toolongstring"}
	err := Validate(s)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields["Short"], "at least 3")
	assert.Contains(t, fields["Long"], "at most 5")
}

type oneofStruct struct {
	Mode string `json:"mode" validate:"oneof=embedded fetched"`
}

func TestValidate_OneOf(t *testing.T) {
	err := Validate(oneofStruct{Mode: "inline"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["mode"], "one of")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"name":"Linen Shirt","currency":"EUR","price":12.5,"url":"https://shop.example.com/x","inventory":2}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var p productInput
	err := DecodeAndValidate(req, &p)

	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", p.Name)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, 12.5, p.Price)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var p productInput
	err := DecodeAndValidate(req, &p)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	body := `{"name":"","currency":"USD","price":1,"url":"https://shop.example.com/x"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var p productInput
	err := DecodeAndValidate(req, &p)

	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
