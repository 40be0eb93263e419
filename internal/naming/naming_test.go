package naming

import (
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDated_NameFor(t *testing.T) {
	d := &Dated{
		Dir: "/srv/watch",
		Now: func() time.Time { return time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC) },
		ID:  func() string { return "k3x9q" },
	}

	assert.Equal(t, "/srv/watch/2024-03-07-document-01-k3x9q.pdf", d.NameFor(1))
	assert.Equal(t, "/srv/watch/2024-03-07-document-12-k3x9q.pdf", d.NameFor(12))
	assert.Equal(t, "/srv/watch/2024-03-07-document-100-k3x9q.pdf", d.NameFor(100))
}

func TestDated_DefaultsAreRandomAndAbsolute(t *testing.T) {
	d := NewDated("out")
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-document-03-[0-9a-f]{5}\.pdf$`)

	a, b := d.NameFor(3), d.NameFor(3)

	require.True(t, filepath.IsAbs(a))
	assert.Equal(t, "out", filepath.Base(filepath.Dir(a)))
	assert.Regexp(t, pattern, filepath.Base(a))
	assert.Regexp(t, pattern, filepath.Base(b))
	assert.NotEqual(t, a, b)
}
