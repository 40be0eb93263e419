// Package pdfio reads page counts from and extracts page ranges out of PDF
// files with pdfcpu.
package pdfio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/splitter"
)

var disableConfigDir sync.Once

// Writer extracts page ranges into new PDF files and counts pages.
type Writer struct {
	conf *model.Configuration
}

// NewWriter returns a Writer using relaxed validation, which tolerates the
// minor defects scanner firmware tends to produce.
func NewWriter() *Writer {
	// pdfcpu otherwise creates a config dir under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Writer{conf: conf}
}

// WritePages writes pages r of src into a new document at dst.
func (w *Writer) WritePages(ctx context.Context, src, dst string, r splitter.ContentRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Empty() {
		return errors.New("cannot write an empty page range")
	}

	if err := api.TrimFile(src, dst, []string{r.Selection()}, w.config()); err != nil {
		return fmt.Errorf("failed to extract pages %s: %w", r.Selection(), err)
	}
	log.Debug().Str("src", src).Str("dst", dst).Str("pages", r.Selection()).Msg("extracted page range")
	return nil
}

// config returns a private copy of the configuration; pdfcpu writes to the
// configuration it is given, and ranges may be written concurrently.
func (w *Writer) config() *model.Configuration {
	c := *w.conf
	return &c
}

// PageCount returns the number of pages in the PDF at path.
func (w *Writer) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}
