package service

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedAttachment indicates the file could not be decoded as an image.
var ErrUnsupportedAttachment = errors.New("unsupported attachment")

const (
	// attachmentBudget is the inline payload size limit. Larger inputs are
	// downscaled before re-encoding.
	attachmentBudget  = 1 << 20
	attachmentQuality = 70
)

// AttachmentEncoder converts user-selected images into compact inline data
// URLs bounded by the size budget.
type AttachmentEncoder interface {
	Encode(name string, data []byte) (string, error)
}

type attachmentEncoder struct {
	logger zerolog.Logger
}

// NewAttachmentEncoder constructs an attachment encoder.
func NewAttachmentEncoder(logger zerolog.Logger) AttachmentEncoder {
	return &attachmentEncoder{
		logger: logger.With().Str("component", "attachment_encoder").Logger(),
	}
}

// Encode re-encodes the image as JPEG at fixed quality and inlines it as a
// data URL. Inputs over the budget are resampled by a linear factor of
// sqrt(budget/size) * 0.7 on both dimensions first; inputs under the budget
// keep their original dimensions.
func (e *attachmentEncoder) Encode(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrUnsupportedAttachment
	}

	kind := mimetype.Detect(data)
	if !isSupportedImage(kind.String()) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAttachment, kind.String())
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedAttachment, err)
	}

	if len(data) > attachmentBudget {
		scale := math.Sqrt(float64(attachmentBudget)/float64(len(data))) * 0.7
		img = resample(img, scale)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: attachmentQuality}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedAttachment, err)
	}

	e.logger.Debug().
		Str("name", name).
		Str("format", format).
		Int("input_bytes", len(data)).
		Int("output_bytes", buf.Len()).
		Msg("attachment encoded")

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func resample(img image.Image, scale float64) image.Image {
	bounds := img.Bounds()
	width := int(float64(bounds.Dx()) * scale)
	height := int(float64(bounds.Dy()) * scale)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func isSupportedImage(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
