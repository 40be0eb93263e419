package splitter

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/metrics"
)

// PageVisitor receives each rendered page in ascending order. err is set
// (and img nil) when that single page could not be rasterized.
type PageVisitor = func(page int, img image.Image, err error) error

// Renderer rasterizes every page of a PDF at the given resolution. An error
// returned by Render itself means the document as a whole is unusable.
type Renderer interface {
	Render(ctx context.Context, path string, dpi float64, visit PageVisitor) error
}

// Indexer walks the rendered pages and collects marker ordinals.
type Indexer struct {
	renderer   Renderer
	classifier *Classifier
	dpi        float64
}

// NewIndexer builds an Indexer rendering at dpi.
func NewIndexer(r Renderer, c *Classifier, dpi float64) *Indexer {
	if dpi <= 0 {
		dpi = 72
	}
	return &Indexer{renderer: r, classifier: c, dpi: dpi}
}

// Index returns the marker ordinals and the number of pages rendered.
func (ix *Indexer) Index(ctx context.Context, path string) (SeparatorSet, int, error) {
	seps := SeparatorSet{}
	total := 0

	err := ix.renderer.Render(ctx, path, ix.dpi, func(page int, img image.Image, rerr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++
		if page != total {
			return fmt.Errorf("renderer visited page %d, expected %d", page, total)
		}
		if rerr != nil {
			log.Warn().Err(rerr).Int("page", page).Str("file", path).Msg("page render failed; treating page as content")
			metrics.IncPage(false)
			return nil
		}

		class := ix.classifier.Classify(ctx, img)
		metrics.IncPage(class == Marker)
		if class == Marker {
			seps = append(seps, page)
		}
		log.Debug().Int("page", page).Stringer("class", class).Msg("classified page")
		return nil
	})
	if err != nil {
		return nil, 0, &RenderError{Path: path, Err: err}
	}

	log.Info().
		Str("file", path).
		Int("total_pages", total).
		Ints("separators", seps).
		Msg("indexed separator pages")
	return seps, total, nil
}
