package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/local/scansplit/internal/config"
	"github.com/local/scansplit/internal/pdfio"
	"github.com/local/scansplit/internal/pdftest"
	"github.com/local/scansplit/internal/splitter"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	root := t.TempDir()
	return cfgpkg.Config{
		Split: cfgpkg.SplitConfig{
			MarkerPayload: "foobar",
			RenderDPI:     72,
			RenderTimeout: 30 * time.Second,
			DecodeTimeout: 10 * time.Second,
			QRMaxDim:      2000,
			EmptyRanges:   cfgpkg.EmptySkip,
			Parallelism:   1,
		},
		Paths: cfgpkg.PathsConfig{
			OutputDir:   filepath.Join(root, "work"),
			OutgoingDir: filepath.Join(root, "outgoing"),
		},
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestSplitFile_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	marker := pdftest.Page{Width: 300, Height: 300, QR: "foobar"}
	foreign := pdftest.Page{Width: 300, Height: 300, QR: "FOOBAR"}
	src := pdftest.Write(t, t.TempDir(), "batch.pdf",
		pdftest.Page{Width: 101}, pdftest.Page{Width: 102}, marker, pdftest.Page{Width: 104}, foreign,
	)
	var out bytes.Buffer

	err := splitFile(context.Background(), cfg, src, &out)

	require.NoError(t, err)
	files := lines(out.String())
	require.Len(t, files, 2)
	pdf := pdfio.NewWriter()
	for i, want := range []int{2, 2} {
		assert.Equal(t, cfg.Paths.OutgoingDir, filepath.Dir(files[i]))
		assert.Contains(t, filepath.Base(files[i]), "-document-0")
		n, err := pdf.PageCount(files[i])
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.NoFileExists(t, src)
}

func TestSplitFile_NoMarkersRenames(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.OutgoingDir = cfg.Paths.OutputDir
	src := pdftest.Write(t, t.TempDir(), "letter.pdf", pdftest.Blank(3)...)
	var out bytes.Buffer

	require.NoError(t, splitFile(context.Background(), cfg, src, &out))

	files := lines(out.String())
	require.Len(t, files, 1)
	assert.Equal(t, cfg.Paths.OutputDir, filepath.Dir(files[0]))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}-document-01-[0-9a-f]{5}\.pdf$`, filepath.Base(files[0]))
	assert.FileExists(t, files[0])
	assert.NoFileExists(t, src)
}

func TestSplitFile_MissingInput(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	err := splitFile(context.Background(), cfg, filepath.Join(t.TempDir(), "nope.pdf"), &out)

	assert.NoError(t, err)
	assert.Equal(t, "file not found\n", out.String())
}

func TestSplitFile_NotAPDF(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.pdf")
	require.NoError(t, writeFile(src, "plain text, not a scan"))

	err := splitFile(context.Background(), cfg, src, &bytes.Buffer{})

	assert.ErrorIs(t, err, splitter.ErrNotPDF)
	assert.FileExists(t, src)
}

func TestResolveInput(t *testing.T) {
	got, err := resolveInput("a.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got)

	got, err = resolveInput("", []string{"b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", got)

	_, err = resolveInput("", nil)
	assert.Error(t, err)

	_, err = resolveInput("a.pdf", []string{"b.pdf"})
	assert.Error(t, err)
}

func TestEmptyPolicy(t *testing.T) {
	assert.Equal(t, splitter.EmitEmpty, emptyPolicy(cfgpkg.EmptyEmit))
	assert.Equal(t, splitter.SkipEmpty, emptyPolicy(cfgpkg.EmptySkip))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)

	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "scansplit dev\n", out.String())
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
