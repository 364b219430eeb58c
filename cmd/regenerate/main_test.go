package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photopipe/internal/models"
)

func TestParseWidths(t *testing.T) {
	got, err := parseWidths(" 400, 800,,1200 ")
	require.NoError(t, err)
	assert.Equal(t, []int{400, 800, 1200}, got)

	for _, bad := range []string{"", ",", "400,abc", "0", "-5"} {
		_, err := parseWidths(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultWidthsRoundTrip(t *testing.T) {
	got, err := parseWidths(joinWidths(models.DefaultWarmWidths))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultWarmWidths, got)
	assert.Equal(t, "400,500,600,700,800,900,1000,1200,2500", joinWidths(models.DefaultWarmWidths))
}
