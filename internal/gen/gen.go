// Package gen produces the random values a bin is born with: short ids,
// colors, favicons and secret keys.
package gen

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"io"
)

const idCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// idLimit is the largest multiple of len(idCharset) that fits in a byte.
// Bytes at or above it are discarded so every character is equally likely.
const idLimit = 256 - 256%len(idCharset)

// Color is an RGB triple with components in [0,255].
type Color [3]int

// TinyID returns a random lowercase alphanumeric string of length n.
func TinyID(n int) string {
	return tinyID(rand.Reader, n)
}

func tinyID(r io.Reader, n int) string {
	b := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(b) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			panic("gen: random source failed: " + err.Error())
		}
		for _, v := range buf {
			if int(v) >= idLimit {
				continue
			}
			b = append(b, idCharset[int(v)%len(idCharset)])
			if len(b) == n {
				break
			}
		}
	}
	return string(b)
}

func RandomColor() Color {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return Color{int(b[0]), int(b[1]), int(b[2])}
}

// SecretKey returns n bytes from crypto/rand.
func SecretKey(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SolidGIFDataURI renders a 16x16 GIF filled with c as a data URI.
func SolidGIFDataURI(c Color) string {
	palette := color.Palette{color.RGBA{R: clamp(c[0]), G: clamp(c[1]), B: clamp(c[2]), A: 0xff}}
	img := image.NewPaletted(image.Rect(0, 0, 16, 16), palette)

	var buf bytes.Buffer
	// Encoding a paletted image into a buffer cannot fail.
	_ = gif.Encode(&buf, img, &gif.Options{NumColors: 1})
	return "data:image/gif;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
