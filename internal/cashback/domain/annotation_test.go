package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestParseAnnotationEmpty(t *testing.T) {
	assert.False(t, ParseAnnotation(nil).Applied)
	assert.False(t, ParseAnnotation(datatypes.JSON(``)).Applied)
}

func TestParseAnnotationCorrupt(t *testing.T) {
	a := ParseAnnotation(datatypes.JSON(`{"applied": "yes", broken`))
	assert.False(t, a.Applied)
	assert.Empty(t, a.Amount)
}

func TestAnnotationRoundTrip(t *testing.T) {
	original := Annotation{
		Applied:   true,
		ProgramID: "12345",
		Percent:   "5.00",
		Base:      BaseTotal,
		Amount:    "50.00",
		Reversals: map[string]string{"67890": "12.50"},
	}

	raw, err := original.JSON()
	require.NoError(t, err)

	parsed := ParseAnnotation(raw)
	assert.Equal(t, original, parsed)
}

func TestReversedTotal(t *testing.T) {
	a := Annotation{
		Reversals: map[string]string{
			"1": "12.50",
			"2": "7.25",
			"3": "garbage",
		},
	}
	assert.Equal(t, "19.75", a.ReversedTotal().StringFixed(2))

	assert.True(t, Annotation{}.ReversedTotal().IsZero())
}
