package splitter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	dir      string
	outDir   string
	source   string
	renderer *fakeRenderer
	writer   *fakeWriter
	ledger   *fakeLedger
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, pages ...fakePage) *pipelineFixture {
	t.Helper()
	dir, src := writeSource(t, "%PDF-1.4 original bytes")
	outDir := filepath.Join(dir, "out")
	f := &pipelineFixture{
		dir:      dir,
		outDir:   outDir,
		source:   src,
		renderer: &fakeRenderer{pages: pages},
		writer:   &fakeWriter{},
		ledger:   &fakeLedger{},
	}
	namer := seqNamer{dir: outDir}
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	f.pipeline = NewPipeline(Dependencies{
		Indexer:  NewIndexer(f.renderer, NewClassifier(&fakeDecoder{}, testPayload, time.Second), 72),
		Splitter: New(Options{Writer: f.writer, Counter: &fakeCounter{}, Namer: namer}),
		Namer:    namer,
		Types:    fakeTypes{pdf: true},
		Ledger:   f.ledger,
	})
	return f
}

// scenario A: markers {3} in 5 pages
func TestPipeline_SplitsAroundMarker(t *testing.T) {
	f := newPipelineFixture(t, contentPage(), contentPage(), markerPage(), contentPage(), contentPage())

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.False(t, res.Unsplit)
	assert.Equal(t, 5, res.TotalPages)
	assert.Equal(t, SeparatorSet{3}, res.Separators)
	assert.Equal(t, []ContentRange{{1, 2}, {4, 5}}, res.Ranges)
	require.Len(t, res.Written(), 2)
	for _, p := range res.Written() {
		pages, err := readPages(p)
		require.NoError(t, err)
		assert.Len(t, pages, 2)
	}
	assert.False(t, fileExists(f.source))
	assert.Equal(t, []string{"split"}, f.ledger.records)
	assert.Equal(t, 1, f.ledger.unlocked)
}

// scenario B: one page, no marker
func TestPipeline_SinglePageIsRenamed(t *testing.T) {
	f := newPipelineFixture(t, contentPage())
	before, err := os.ReadFile(f.source)
	require.NoError(t, err)

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.True(t, res.Unsplit)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, filepath.Join(f.outDir, "doc-01.pdf"), res.Outputs[0].Path)
	after, err := os.ReadFile(res.Outputs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, fileExists(f.source))
	assert.Zero(t, f.writer.callCount())
	assert.Equal(t, []string{"unsplit"}, f.ledger.records)
}

func TestPipeline_NoMarkersNeverSplits(t *testing.T) {
	f := newPipelineFixture(t, contentPage(), contentPage(), contentPage())

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.True(t, res.Unsplit)
	assert.Nil(t, res.Ranges)
	assert.Zero(t, f.writer.callCount())
	assert.Equal(t, ContentRange{1, 3}, res.Outputs[0].Range)
}

// a lone marker page still takes the single-document path
func TestPipeline_SingleMarkerPage(t *testing.T) {
	f := newPipelineFixture(t, markerPage())

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.True(t, res.Unsplit)
	assert.Equal(t, SeparatorSet{1}, res.Separators)
	assert.Zero(t, f.writer.callCount())
}

func TestPipeline_ZeroPages(t *testing.T) {
	f := newPipelineFixture(t)

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.True(t, res.Unsplit)
	assert.Equal(t, 0, res.TotalPages)
}

// scenario C: markers {1, 4} in 4 pages
func TestPipeline_BoundaryMarkers(t *testing.T) {
	f := newPipelineFixture(t, markerPage(), contentPage(), contentPage(), markerPage())

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	require.Len(t, res.Ranges, 3)
	assert.True(t, res.Ranges[0].Empty())
	assert.True(t, res.Ranges[2].Empty())
	require.Len(t, res.Written(), 1)
	pages, err := readPages(res.Written()[0])
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, pages)
}

// scenario D: adjacent markers {2, 3}
func TestPipeline_AdjacentMarkers(t *testing.T) {
	f := newPipelineFixture(t, contentPage(), markerPage(), markerPage(), contentPage(), contentPage())

	res, err := f.pipeline.Run(context.Background(), f.source)

	require.NoError(t, err)
	assert.Equal(t, []ContentRange{{1, 1}, {3, 2}, {4, 5}}, res.Ranges)
	assert.Len(t, res.Written(), 2)
}

func TestPipeline_InputNotFound(t *testing.T) {
	f := newPipelineFixture(t, contentPage())

	_, err := f.pipeline.Run(context.Background(), filepath.Join(f.dir, "missing.pdf"))

	assert.ErrorIs(t, err, ErrInputNotFound)
	assert.Empty(t, f.ledger.locked)
	assert.Equal(t, []string{"not_found"}, f.ledger.records)
}

func TestPipeline_DirectoryIsNotFound(t *testing.T) {
	f := newPipelineFixture(t, contentPage())

	_, err := f.pipeline.Run(context.Background(), f.dir)

	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestPipeline_NotPDF(t *testing.T) {
	f := newPipelineFixture(t, contentPage())
	f.pipeline.deps.Types = fakeTypes{pdf: false}

	_, err := f.pipeline.Run(context.Background(), f.source)

	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Equal(t, "render", Kind(err))
	assert.True(t, fileExists(f.source))
}

func TestPipeline_RenderFailureLeavesSource(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.openErr = errors.New("cannot open document")

	res, err := f.pipeline.Run(context.Background(), f.source)

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Empty(t, res.Outputs)
	assert.True(t, fileExists(f.source))
	entries, rerr := os.ReadDir(f.outDir)
	require.NoError(t, rerr)
	assert.Empty(t, entries)
	assert.Equal(t, 1, f.ledger.unlocked)
}

func TestPipeline_PersistenceFailure(t *testing.T) {
	f := newPipelineFixture(t, contentPage(), markerPage(), contentPage(), markerPage(), contentPage())
	f.writer.failOn = map[string]error{"3": errors.New("quota exceeded")}

	_, err := f.pipeline.Run(context.Background(), f.source)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Index)
	assert.True(t, fileExists(f.source))
	assert.Equal(t, []string{"persistence"}, f.ledger.records)
}

func TestPipeline_Locked(t *testing.T) {
	f := newPipelineFixture(t, contentPage())
	f.ledger.lockErr = ErrLocked

	_, err := f.pipeline.Run(context.Background(), f.source)

	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, fileExists(f.source))
	assert.Equal(t, []string{"locked"}, f.ledger.records)
}

func TestSingleDocumentPredicates(t *testing.T) {
	assert.True(t, noSeparators(nil))
	assert.True(t, noSeparators(SeparatorSet{}))
	assert.False(t, noSeparators(SeparatorSet{2}))

	assert.True(t, tooFewPages(0))
	assert.True(t, tooFewPages(1))
	assert.False(t, tooFewPages(2))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "not_found", Kind(ErrInputNotFound))
	assert.Equal(t, "no_content", Kind(ErrNoContent))
	assert.Equal(t, "canceled", Kind(context.Canceled))
	assert.Equal(t, "other", Kind(errors.New("x")))
	assert.Equal(t, "persistence", Kind(&PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, "render", Kind(&RenderError{Err: errors.New("x")}))
	assert.Equal(t, "canceled", Kind(&RenderError{Path: "scan.pdf", Err: context.Canceled}))
	assert.Equal(t, "canceled", Kind(&PersistenceError{Err: context.DeadlineExceeded}))
}
