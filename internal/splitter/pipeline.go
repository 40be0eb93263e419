package splitter

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/scansplit/internal/metrics"
)

// TypeChecker confirms that a file is a PDF before it is rendered.
type TypeChecker interface {
	IsPDF(path string) (bool, error)
}

// RunLedger guards a source against concurrent runs and records outcomes.
type RunLedger interface {
	Lock(ctx context.Context, source string) (unlock func(), err error)
	Record(ctx context.Context, res *Result, runErr error) error
}

// Result summarizes one run.
type Result struct {
	RunID      string
	Source     string
	TotalPages int
	Separators SeparatorSet
	Ranges     []ContentRange
	Outputs    []Output
	Unsplit    bool
	Started    time.Time
	Finished   time.Time
}

// Written returns the paths of documents that were actually produced.
func (r *Result) Written() []string {
	var paths []string
	for _, o := range r.Outputs {
		if o.Path != "" {
			paths = append(paths, o.Path)
		}
	}
	return paths
}

// Outcome labels a finished run for metrics and the ledger.
func Outcome(res *Result, err error) string {
	if err != nil {
		return Kind(err)
	}
	if res != nil && res.Unsplit {
		return "unsplit"
	}
	return "split"
}

// Dependencies wires the Pipeline.
type Dependencies struct {
	Indexer  *Indexer
	Splitter *Splitter
	Namer    Namer
	Types    TypeChecker // optional
	Ledger   RunLedger   // optional
}

// Pipeline runs index, decide, split for one source file.
type Pipeline struct {
	deps Dependencies
}

// NewPipeline builds a Pipeline.
func NewPipeline(deps Dependencies) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run processes source. No step is retried.
func (p *Pipeline) Run(ctx context.Context, source string) (res *Result, err error) {
	res = &Result{RunID: uuid.NewString(), Source: source, Started: time.Now()}
	logger := log.With().Str("run_id", res.RunID).Str("file", source).Logger()
	logger.Info().Msg("splitting")

	defer func() {
		res.Finished = time.Now()
		outcome := Outcome(res, err)
		metrics.IncRun(outcome)
		metrics.ObserveRun(res.Finished.Sub(res.Started))
		metrics.AddDocuments(len(res.Written()))
		if p.deps.Ledger != nil {
			if lerr := p.deps.Ledger.Record(context.WithoutCancel(ctx), res, err); lerr != nil {
				logger.Warn().Err(lerr).Msg("run ledger write failed")
			}
		}
		if err != nil {
			logger.Error().Err(err).Str("outcome", outcome).Msg("run failed")
			return
		}
		logger.Info().Str("outcome", outcome).Strs("outputs", res.Written()).Msg("run finished")
	}()

	info, statErr := os.Stat(source)
	if statErr != nil || !info.Mode().IsRegular() {
		return res, fmt.Errorf("%w: %s", ErrInputNotFound, source)
	}

	if p.deps.Types != nil {
		ok, terr := p.deps.Types.IsPDF(source)
		if terr != nil {
			return res, &RenderError{Path: source, Err: terr}
		}
		if !ok {
			return res, &RenderError{Path: source, Err: ErrNotPDF}
		}
	}

	if p.deps.Ledger != nil {
		unlock, lerr := p.deps.Ledger.Lock(ctx, source)
		if lerr != nil {
			return res, lerr
		}
		defer unlock()
	}

	seps, total, err := p.deps.Indexer.Index(ctx, source)
	if err != nil {
		return res, err
	}
	if err := seps.Validate(total); err != nil {
		return res, &RenderError{Path: source, Err: err}
	}
	res.TotalPages = total
	res.Separators = seps

	if noSeparators(seps) || tooFewPages(total) {
		res.Unsplit = true
		out, err := HandleUnsplit(source, total, p.deps.Namer)
		if err != nil {
			return res, err
		}
		res.Outputs = []Output{out}
		return res, nil
	}

	res.Ranges = ComputeRanges(seps, total)
	for _, r := range res.Ranges {
		if r.Empty() {
			metrics.IncEmptyRange()
		}
	}
	outs, err := p.deps.Splitter.Split(ctx, source, res.Ranges)
	res.Outputs = outs
	return res, err
}
