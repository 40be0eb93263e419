// Package relocate hands finished documents over to the next stage: a local
// outgoing directory or an S3 prefix.
package relocate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/config"
	"github.com/local/scansplit/internal/fileutil"
	"github.com/local/scansplit/internal/metrics"
)

// Relocator moves every finished PDF found in dir and returns where each
// one ended up.
type Relocator interface {
	Relocate(ctx context.Context, dir string) ([]string, error)
}

// FromConfig picks the S3 relocator when an outgoing URL is set and the
// local one otherwise. It returns nil when neither is configured.
func FromConfig(ctx context.Context, paths config.PathsConfig, creds config.AWSConfig) (Relocator, error) {
	switch {
	case paths.OutgoingURL != "":
		rel, err := NewS3(ctx, paths.OutgoingURL, creds)
		if err != nil {
			return nil, err
		}
		return rel, nil
	case paths.OutgoingDir != "":
		return &Local{Dest: paths.OutgoingDir}, nil
	}
	return nil, nil
}

// Pending lists the PDFs at the top level of dir, sorted by name. The
// extension match is case-insensitive; subdirectories are not searched.
func Pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Local moves PDFs into Dest.
type Local struct {
	Dest string
}

// Relocate moves each pending PDF in dir to Dest, keeping its name.
func (l *Local) Relocate(ctx context.Context, dir string) ([]string, error) {
	if same(dir, l.Dest) {
		log.Debug().Str("dir", dir).Msg("outgoing dir is the output dir; nothing to relocate")
		return nil, nil
	}
	files, err := Pending(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.Dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create outgoing dir: %w", err)
	}

	moved := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		dst := filepath.Join(l.Dest, filepath.Base(f))
		if err := fileutil.Move(f, dst); err != nil {
			return moved, fmt.Errorf("failed to move %s: %w", f, err)
		}
		metrics.IncRelocated("local")
		log.Info().Str("from", f).Str("to", dst).Msg("relocated document")
		moved = append(moved, dst)
	}
	return moved, nil
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
