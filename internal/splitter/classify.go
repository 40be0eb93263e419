package splitter

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog/log"
)

// PageClass tags a rendered page.
type PageClass int

const (
	Content PageClass = iota
	Marker
)

func (c PageClass) String() string {
	if c == Marker {
		return "marker"
	}
	return "content"
}

// Decoder extracts a QR payload from a raster image. found is false when
// the image carries no readable code.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) (payload string, found bool, err error)
}

// Classifier decides marker vs content by comparing the decoded payload
// with the expected one, byte for byte.
type Classifier struct {
	decoder Decoder
	payload string
	timeout time.Duration
}

// NewClassifier builds a Classifier. A non-positive timeout disables the
// per-page decode deadline.
func NewClassifier(d Decoder, payload string, timeout time.Duration) *Classifier {
	return &Classifier{decoder: d, payload: payload, timeout: timeout}
}

type decodeResult struct {
	payload string
	found   bool
	err     error
}

// Classify never fails: decode errors, timeouts and foreign payloads all
// make the page Content.
func (c *Classifier) Classify(ctx context.Context, img image.Image) PageClass {
	if img == nil {
		return Content
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ch := make(chan decodeResult, 1)
	go func() {
		p, ok, err := c.decoder.Decode(ctx, img)
		ch <- decodeResult{payload: p, found: ok, err: err}
	}()

	var res decodeResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("qr decode did not finish; treating page as content")
		return Content
	}

	if res.err != nil {
		log.Debug().Err(res.err).Msg("qr decode failed; treating page as content")
		return Content
	}
	if !res.found {
		return Content
	}
	if res.payload != c.payload {
		log.Debug().Str("payload", res.payload).Msg("foreign qr payload; treating page as content")
		return Content
	}
	return Marker
}
