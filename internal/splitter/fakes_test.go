package splitter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testPayload = "foobar"

// pageImage is a 1x1 raster carrying the payload a fake decoder will "read".
type pageImage struct {
	*image.Gray
	payload string
}

func newPage(payload string) image.Image {
	return &pageImage{Gray: image.NewGray(image.Rect(0, 0, 1, 1)), payload: payload}
}

type fakeDecoder struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (d *fakeDecoder) Decode(ctx context.Context, img image.Image) (string, bool, error) {
	d.calls.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return "", false, d.err
	}
	p, ok := img.(*pageImage)
	if !ok || p.payload == "" {
		return "", false, nil
	}
	return p.payload, true, nil
}

// fakePage describes one page of a fake document.
type fakePage struct {
	payload   string
	renderErr error
}

func markerPage() fakePage  { return fakePage{payload: testPayload} }
func contentPage() fakePage { return fakePage{} }

type fakeRenderer struct {
	pages   []fakePage
	openErr error
	dpi     float64
}

func (r *fakeRenderer) Render(ctx context.Context, path string, dpi float64, visit PageVisitor) error {
	r.dpi = dpi
	if r.openErr != nil {
		return r.openErr
	}
	for i, p := range r.pages {
		var img image.Image
		if p.renderErr == nil {
			img = newPage(p.payload)
		}
		if err := visit(i+1, img, p.renderErr); err != nil {
			return err
		}
	}
	return nil
}

// fakeWriter writes the selected ordinals as "pages:1,2" so tests can read
// back which pages landed in which output.
type fakeWriter struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
	block  map[string]chan struct{}
}

func (w *fakeWriter) WritePages(ctx context.Context, src, dst string, r ContentRange) error {
	sel := r.Selection()
	w.mu.Lock()
	w.calls = append(w.calls, sel)
	err := w.failOn[sel]
	ch := w.block[sel]
	w.mu.Unlock()
	if ch != nil {
		<-ch
	}
	if _, serr := os.Stat(src); serr != nil {
		return serr
	}
	if err != nil {
		// leave a partial file behind, as a crashed writer would
		_ = os.WriteFile(dst, []byte("partial"), 0o644)
		return err
	}
	strs := make([]string, 0, r.Len())
	for _, p := range r.Pages() {
		strs = append(strs, strconv.Itoa(p))
	}
	return os.WriteFile(dst, []byte("pages:"+strings.Join(strs, ",")), 0o644)
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

type fakeCounter struct {
	override map[string]int
}

func (c *fakeCounter) PageCount(path string) (int, error) {
	if n, ok := c.override[filepath.Base(path)]; ok {
		return n, nil
	}
	pages, err := readPages(path)
	return len(pages), err
}

func readPages(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := strings.TrimPrefix(string(b), "pages:")
	if s == string(b) {
		return nil, errors.New("not a fake document")
	}
	var pages []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, n)
	}
	return pages, nil
}

type seqNamer struct{ dir string }

func (n seqNamer) NameFor(index int) string {
	return filepath.Join(n.dir, fmt.Sprintf("doc-%02d.pdf", index))
}

type fakeTypes struct {
	pdf bool
	err error
}

func (f fakeTypes) IsPDF(string) (bool, error) { return f.pdf, f.err }

type fakeLedger struct {
	lockErr  error
	locked   []string
	unlocked int
	records  []string
}

func (l *fakeLedger) Lock(ctx context.Context, source string) (func(), error) {
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.locked = append(l.locked, source)
	return func() { l.unlocked++ }, nil
}

func (l *fakeLedger) Record(ctx context.Context, res *Result, runErr error) error {
	l.records = append(l.records, Outcome(res, runErr))
	return nil
}

// writeSource creates a fake source document in a fresh temp dir.
func writeSource(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir, path
}

// stagingDirs lists leftover staging directories in dir.
func stagingDirs(t *testing.T, dir string) []string {
	t.Helper()
	m, err := filepath.Glob(filepath.Join(dir, ".staging-*"))
	require.NoError(t, err)
	return m
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
