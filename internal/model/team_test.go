package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZipSource_Guessed(t *testing.T) {
	assert.False(t, ZipSourceNone.Guessed())
	assert.False(t, ZipSourceProvider.Guessed())
	assert.True(t, ZipSourceExact.Guessed())
	assert.True(t, ZipSourceSubstring.Guessed())
}

func TestTeamRecord_Flags(t *testing.T) {
	r := TeamRecord{TeamKey: "frc254"}
	assert.False(t, r.HasPostalCode())
	assert.False(t, r.Resolved())

	r.PostalCode = "48104"
	r.County = "Washtenaw"
	assert.True(t, r.HasPostalCode())
	assert.True(t, r.Resolved())
}
