package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSKUPrefix(t *testing.T) {
	assert.Equal(t, "CAL-NIK", SKUPrefix("Calçados", "Nike"))
	assert.Equal(t, "ACE-OBO", SKUPrefix("Acessórios", "O Boticário"))
	assert.Equal(t, "GEN-GEN", SKUPrefix("", "--"))
	assert.Equal(t, "CAT-BRA-0001", FormatSKU(SKUPrefix("cat", "bra"), 1))
	assert.Equal(t, "ROU-ABC-12345", FormatSKU("ROU-ABC", 12345))
}

func TestEAN13CheckDigit(t *testing.T) {
	check, err := EAN13CheckDigit("789100010001")
	require.NoError(t, err)
	assert.True(t, ValidGTIN("789100010001"+string(check)))

	// 4006381333931 is a published EAN-13 sample.
	check, err = EAN13CheckDigit("400638133393")
	require.NoError(t, err)
	assert.Equal(t, byte('1'), check)

	_, err = EAN13CheckDigit("12345")
	assert.Error(t, err)
	_, err = EAN13CheckDigit("40063813339a")
	assert.Error(t, err)
}

func TestValidGTIN(t *testing.T) {
	assert.True(t, ValidGTIN("4006381333931"))
	assert.False(t, ValidGTIN("4006381333932"))
	assert.False(t, ValidGTIN("400638133393"))
}

func TestRandomGTIN(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := randomGTIN()
		require.NoError(t, err)
		assert.Len(t, code, 13)
		assert.True(t, strings.HasPrefix(code, GTINPrefix))
		assert.True(t, ValidGTIN(code), code)
	}
}
