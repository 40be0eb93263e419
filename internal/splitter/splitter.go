package splitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PageWriter builds a new PDF at dst holding the pages of r from src.
type PageWriter interface {
	WritePages(ctx context.Context, src, dst string, r ContentRange) error
}

// PageCounter reports the page count of a written PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Namer returns a unique absolute output path for output number index.
type Namer interface {
	NameFor(index int) string
}

// EmptyPolicy decides how ranges without pages are handled.
type EmptyPolicy int

const (
	// SkipEmpty drops empty ranges and numbers the remaining outputs 1..n.
	SkipEmpty EmptyPolicy = iota
	// EmitEmpty gives every range its own index. Empty ranges are reported
	// as outputs without a path; no zero-page file is written.
	EmitEmpty
)

// Output describes one materialized (or, under EmitEmpty, skipped) document.
type Output struct {
	Index int
	Range ContentRange
	Path  string
}

// Options configures a Splitter.
type Options struct {
	Writer      PageWriter
	Counter     PageCounter // nil skips verification
	Namer       Namer
	EmptyRanges EmptyPolicy
	Parallelism int
}

// Splitter stages every range, verifies the staged files, commits them and
// only then removes the source.
type Splitter struct {
	opts Options
}

// New builds a Splitter.
func New(opts Options) *Splitter {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Splitter{opts: opts}
}

// plan assigns output indexes and final paths to ranges.
func (s *Splitter) plan(ranges []ContentRange) []Output {
	plan := make([]Output, 0, len(ranges))
	idx := 0
	for _, r := range ranges {
		if r.Empty() {
			if s.opts.EmptyRanges == EmitEmpty {
				idx++
				plan = append(plan, Output{Index: idx, Range: r})
			}
			log.Warn().Int("start", r.Start).Msg("empty range between markers")
			continue
		}
		idx++
		plan = append(plan, Output{Index: idx, Range: r, Path: s.opts.Namer.NameFor(idx)})
	}
	return plan
}

// Split writes one document per non-empty range and removes source once
// every document is committed. On error the source is left in place.
func (s *Splitter) Split(ctx context.Context, source string, ranges []ContentRange) ([]Output, error) {
	plan := s.plan(ranges)

	var todo []Output
	for _, o := range plan {
		if o.Path != "" {
			todo = append(todo, o)
		}
	}
	if len(todo) == 0 {
		return nil, ErrNoContent
	}

	stageDir := filepath.Join(filepath.Dir(todo[0].Path), ".staging-"+uuid.NewString())
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, &PersistenceError{Index: todo[0].Index, Range: todo[0].Range, Path: stageDir, Err: fmt.Errorf("create staging dir: %w", err)}
	}
	staged := make([]string, len(todo))
	for i, o := range todo {
		staged[i] = filepath.Join(stageDir, filepath.Base(o.Path))
	}

	// phase 1: stage
	var err error
	if s.opts.Parallelism > 1 && len(todo) > 1 {
		err = s.stageParallel(ctx, source, todo, staged)
	} else {
		err = s.stageSequential(ctx, source, todo, staged)
	}
	if err != nil {
		return nil, err
	}

	// phase 2: verify
	if err := s.verify(todo, staged); err != nil {
		return nil, err
	}

	// phase 3: commit, then drop the source
	for i, o := range todo {
		if err := os.Rename(staged[i], o.Path); err != nil {
			committed := make([]string, 0, i)
			for _, c := range todo[:i] {
				committed = append(committed, c.Path)
			}
			return nil, &PersistenceError{
				Index:   o.Index,
				Range:   o.Range,
				Path:    o.Path,
				Written: committed,
				Staged:  append([]string(nil), staged[i:]...),
				Err:     fmt.Errorf("commit: %w", err),
			}
		}
		log.Info().Int("index", o.Index).Str("pages", o.Range.Selection()).Str("file", o.Path).Msg("committed output document")
	}
	if err := os.Remove(stageDir); err != nil {
		log.Warn().Err(err).Str("dir", stageDir).Msg("staging dir not removed")
	}
	if err := os.Remove(source); err != nil {
		return plan, fmt.Errorf("outputs committed but source not removed: %w", err)
	}
	log.Info().Str("file", source).Int("outputs", len(todo)).Msg("split complete; source removed")
	return plan, nil
}

func (s *Splitter) stageSequential(ctx context.Context, source string, todo []Output, staged []string) error {
	for i, o := range todo {
		if err := s.stageOne(ctx, source, o, staged[i]); err != nil {
			return &PersistenceError{Index: o.Index, Range: o.Range, Path: staged[i], Written: append([]string(nil), staged[:i]...), Err: err}
		}
	}
	return nil
}

// stageParallel writes ranges concurrently. On failure every staged file
// from the lowest unfinished index onward is discarded, so what remains on
// disk is exactly the prefix a sequential run would have left.
func (s *Splitter) stageParallel(ctx context.Context, source string, todo []Output, staged []string) error {
	errs := make([]error, len(todo))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i := range todo {
		i := i
		g.Go(func() error {
			err := gctx.Err()
			if err == nil {
				err = s.stageOne(gctx, source, todo[i], staged[i])
			}
			if err != nil {
				mu.Lock()
				errs[i] = err
				mu.Unlock()
			}
			return err
		})
	}
	if g.Wait() == nil {
		return nil
	}

	first := -1
	cause := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		if cause < 0 && !errors.Is(err, context.Canceled) {
			cause = i
		}
	}
	if cause < 0 {
		cause = first
	}
	discard(staged[first:])

	o := todo[cause]
	return &PersistenceError{Index: o.Index, Range: o.Range, Path: staged[cause], Written: append([]string(nil), staged[:first]...), Err: errs[cause]}
}

func (s *Splitter) stageOne(ctx context.Context, source string, o Output, dst string) error {
	if err := s.opts.Writer.WritePages(ctx, source, dst, o.Range); err != nil {
		_ = os.Remove(dst)
		return err
	}
	log.Debug().Int("index", o.Index).Str("pages", o.Range.Selection()).Str("file", dst).Msg("staged output document")
	return nil
}

func (s *Splitter) verify(todo []Output, staged []string) error {
	if s.opts.Counter == nil {
		return nil
	}
	for i, o := range todo {
		n, err := s.opts.Counter.PageCount(staged[i])
		if err == nil && n != o.Range.Len() {
			err = fmt.Errorf("staged file has %d pages, want %d", n, o.Range.Len())
		}
		if err != nil {
			discard(staged[i:])
			return &PersistenceError{Index: o.Index, Range: o.Range, Path: staged[i], Written: append([]string(nil), staged[:i]...), Err: fmt.Errorf("verify: %w", err)}
		}
	}
	return nil
}

func discard(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("file", p).Msg("could not discard staged file")
		}
	}
}
