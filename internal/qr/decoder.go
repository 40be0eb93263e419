// Package qr reads QR codes from rendered pages using gozxing.
package qr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultMaxDim caps the longer side of an image handed to the detector.
const DefaultMaxDim = 2000

// Decoder finds a single QR code in an image.
type Decoder struct {
	// MaxDim downscales larger images before detection; zero disables it.
	MaxDim int
}

// NewDecoder returns a Decoder that downscales images above maxDim pixels.
func NewDecoder(maxDim int) *Decoder {
	return &Decoder{MaxDim: maxDim}
}

// Decode returns the payload of the QR code in img. found is false when no
// code could be located or read; err is reserved for unexpected failures.
func (d *Decoder) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if img == nil {
		return "", false, nil
	}

	src := d.fit(img)
	bmp, err := gozxing.NewBinaryBitmapFromImage(src)
	if err != nil {
		return "", false, fmt.Errorf("failed to binarize image: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		if isMiss(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to decode qr: %w", err)
	}

	log.Debug().Int("bytes", len(res.GetText())).Msg("qr code decoded")
	return res.GetText(), true, nil
}

// fit scales img down so its longer side is at most MaxDim.
func (d *Decoder) fit(img image.Image) image.Image {
	b := img.Bounds()
	w, h := fitDims(b.Dx(), b.Dy(), d.MaxDim)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func fitDims(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		return max, maxInt(1, h*max/w)
	}
	return maxInt(1, w*max/h), max
}

// isMiss reports the gozxing exceptions that simply mean "no readable code".
func isMiss(err error) bool {
	var notFound gozxing.NotFoundException
	var checksum gozxing.ChecksumException
	var format gozxing.FormatException
	return errors.As(err, &notFound) || errors.As(err, &checksum) || errors.As(err, &format)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
