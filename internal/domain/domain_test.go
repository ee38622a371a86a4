package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnits_RoundTrip(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, 19.99, FromMinorUnits(ToMinorUnits(19.99)))
}

func TestToMinorUnits_Rounds(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{0.1 + 0.2, 30},
		{0.07, 7},
		{10, 1000},
		{4.994, 499},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(tt.in), "%v", tt.in)
	}
}

func TestAvailabilityFor(t *testing.T) {
	assert.Equal(t, InStock, AvailabilityFor(1))
	assert.Equal(t, InStock, AvailabilityFor(250))
	assert.Equal(t, OutOfStock, AvailabilityFor(0))
	assert.Equal(t, OutOfStock, AvailabilityFor(-3))
}

func TestParseReviewStatus(t *testing.T) {
	assert.Equal(t, ReviewApproved, ParseReviewStatus("approved"))
	assert.Equal(t, ReviewRejected, ParseReviewStatus(" REJECTED "))
	assert.Equal(t, ReviewPending, ParseReviewStatus("pending"))
	assert.Equal(t, ReviewPending, ParseReviewStatus(""))
	assert.Equal(t, ReviewPending, ParseReviewStatus("outdated"))
}

func TestProductUpdate_IsEmpty(t *testing.T) {
	assert.True(t, ProductUpdate{}.IsEmpty())

	inv := 0
	assert.False(t, ProductUpdate{Inventory: &inv}.IsEmpty())

	urls := []string{}
	assert.False(t, ProductUpdate{AdditionalImageURLs: &urls}.IsEmpty())
}
