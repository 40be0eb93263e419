package splitter

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/fileutil"
)

// noSeparators reports that no marker page was found.
func noSeparators(seps SeparatorSet) bool { return len(seps) == 0 }

// tooFewPages reports that the document cannot hold a marker and content.
func tooFewPages(total int) bool { return total <= 1 }

// HandleUnsplit renames source to the name of output 1 without touching its
// bytes. The destination comes from namer as an absolute path and is used
// as is.
func HandleUnsplit(source string, total int, namer Namer) (Output, error) {
	dst := namer.NameFor(1)
	out := Output{Index: 1, Range: ContentRange{Start: 1, End: total}, Path: dst}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Output{}, &PersistenceError{Index: 1, Range: out.Range, Path: dst, Err: err}
	}
	if err := fileutil.Move(source, dst); err != nil {
		return Output{}, &PersistenceError{Index: 1, Range: out.Range, Path: dst, Err: err}
	}
	log.Info().Str("from", source).Str("to", dst).Int("total_pages", total).Msg("single document; renamed without splitting")
	return out, nil
}
