package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAttachmentEncodeKeepsSmallImagesAtFullSize(t *testing.T) {
	encoder := NewAttachmentEncoder(zerolog.Nop())

	data := encodePNG(t, flatImage(50, 40))
	require.Less(t, len(data), attachmentBudget)

	out, err := encoder.Encode("avatar.png", data)
	require.NoError(t, err)

	img := decodeDataURL(t, out)
	require.Equal(t, 50, img.Bounds().Dx())
	require.Equal(t, 40, img.Bounds().Dy())
}

func TestAttachmentEncodeDownscalesOversizedImages(t *testing.T) {
	encoder := NewAttachmentEncoder(zerolog.Nop())

	data := encodePNG(t, noiseImage(900, 900))
	require.Greater(t, len(data), attachmentBudget, "test input must exceed the inline budget")

	out, err := encoder.Encode("photo.png", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/jpeg;base64,"))

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(out, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	require.Less(t, len(payload), attachmentBudget)

	img := decodeDataURL(t, out)
	require.Less(t, img.Bounds().Dx(), 900)
	require.Less(t, img.Bounds().Dy(), 900)
}

func TestAttachmentEncodeRejectsNonImages(t *testing.T) {
	encoder := NewAttachmentEncoder(zerolog.Nop())

	_, err := encoder.Encode("notes.txt", []byte("just some text"))
	require.ErrorIs(t, err, ErrUnsupportedAttachment)

	_, err = encoder.Encode("empty.bin", nil)
	require.ErrorIs(t, err, ErrUnsupportedAttachment)
}

func flatImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	return img
}

// noiseImage fills every pixel with random values so the PNG encoding cannot
// compress below the budget.
func noiseImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(rng.Intn(256))
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDataURL(t *testing.T, dataURL string) image.Image {
	t.Helper()
	require.True(t, strings.HasPrefix(dataURL, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}
