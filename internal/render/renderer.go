package render

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/metrics"
)

// Fitz rasterizes PDF pages with MuPDF via go-fitz.
type Fitz struct {
	// PageTimeout bounds a single page render. MuPDF calls on one document
	// are serialized, so a page that never finishes aborts the document.
	PageTimeout time.Duration
}

// NewFitz creates a go-fitz backed renderer.
func NewFitz(pageTimeout time.Duration) *Fitz {
	return &Fitz{PageTimeout: pageTimeout}
}

type rendered struct {
	img *image.RGBA
	err error
}

// Render opens pdfPath and hands every page, in order, to visit. Pages are
// 1-based. A page that fails to rasterize is passed with its error; failing
// to open the document is returned directly.
func (f *Fitz) Render(ctx context.Context, pdfPath string, dpi float64, visit func(page int, img image.Image, err error) error) error {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	stuck := false
	defer func() {
		if !stuck {
			doc.Close()
		}
	}()

	n := doc.NumPage()
	log.Debug().Str("pdf", pdfPath).Int("pages", n).Float64("dpi", dpi).Msg("rendering pages")

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// go-fitz uses 0-based indexing
		ch := make(chan rendered, 1)
		start := time.Now()
		go func(idx int) {
			img, err := doc.ImageDPI(idx, dpi)
			ch <- rendered{img: img, err: err}
		}(i)

		var timeout <-chan time.Time
		var timer *time.Timer
		if f.PageTimeout > 0 {
			timer = time.NewTimer(f.PageTimeout)
			timeout = timer.C
		}

		var r rendered
		select {
		case r = <-ch:
			if timer != nil {
				timer.Stop()
			}
		case <-timeout:
			stuck = true
			go closeWhenDone(doc, ch)
			return fmt.Errorf("render page %d: timed out after %s", i+1, f.PageTimeout)
		case <-ctx.Done():
			stuck = true
			go closeWhenDone(doc, ch)
			return ctx.Err()
		}
		metrics.ObserveRender(time.Since(start))

		if r.err != nil {
			if err := visit(i+1, nil, fmt.Errorf("failed to render page %d: %w", i+1, r.err)); err != nil {
				return err
			}
			continue
		}

		b := r.img.Bounds()
		log.Debug().Int("page", i+1).Int("width", b.Dx()).Int("height", b.Dy()).Msg("rendered page")
		if err := visit(i+1, r.img, nil); err != nil {
			return err
		}
	}
	return nil
}

// closeWhenDone releases the document once the abandoned render returns.
func closeWhenDone(doc *fitz.Document, ch <-chan rendered) {
	<-ch
	doc.Close()
}
