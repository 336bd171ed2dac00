package gen

import (
	"bytes"
	"encoding/base64"
	"image/gif"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTinyID_Format(t *testing.T) {
	re := regexp.MustCompile(`^[a-z0-9]+$`)
	for _, n := range []int{6, 8} {
		id := TinyID(n)
		assert.Len(t, id, n)
		assert.Regexp(t, re, id)
	}
}

func TestTinyID_Uniqueness(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := TinyID(8)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTinyID_SkipsBiasedBytes(t *testing.T) {
	src := bytes.NewReader([]byte{255, 252, 0, 253, 35, 36, 254, 251})
	assert.Equal(t, "a9a9", tinyID(src, 4))
}

func TestRandomColor_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		c := RandomColor()
		for _, v := range c {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 255)
		}
	}
}

func TestSecretKey(t *testing.T) {
	a, err := SecretKey(24)
	require.NoError(t, err)
	b, err := SecretKey(24)
	require.NoError(t, err)
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}

func TestSolidGIFDataURI(t *testing.T) {
	uri := SolidGIFDataURI(Color{255, 0, 10})
	require.True(t, strings.HasPrefix(uri, "data:image/gif;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/gif;base64,"))
	require.NoError(t, err)

	img, err := gif.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	r, g, b, _ := img.At(3, 7).RGBA()
	assert.Equal(t, []uint32{255, 0, 10}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestSolidGIFDataURI_Deterministic(t *testing.T) {
	assert.Equal(t, SolidGIFDataURI(Color{1, 2, 3}), SolidGIFDataURI(Color{1, 2, 3}))
}
