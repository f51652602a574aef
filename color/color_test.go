package color

import (
	col "image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamedAndHex(t *testing.T) {
	c, err := Parse("red")
	require.NoError(t, err)
	assert.Equal(t, col.NRGBA{R: 255, A: 255}, c)

	c, err = Parse("#00ff0080")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), c.G)
	assert.Equal(t, uint8(128), c.A)
}

func TestParseColorFallsBackToBlack(t *testing.T) {
	assert.Equal(t, col.Black, ParseColor("not-a-color"))
}

func TestHasAlpha(t *testing.T) {
	assert.False(t, HasAlpha("transparent"))
	assert.False(t, HasAlpha("rgba(10, 20, 30, 0)"))
	assert.False(t, HasAlpha("bogus"))
	assert.True(t, HasAlpha("lightblue"))
}
