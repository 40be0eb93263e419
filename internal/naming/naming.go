// Package naming produces output document paths.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Dated names outputs <Dir>/<YYYY-MM-DD>-document-<NN>-<id>.pdf, where id
// is five random characters so repeated runs on one day never collide.
type Dated struct {
	Dir string
	Now func() time.Time
	ID  func() string
}

// NewDated returns a Dated namer writing under dir.
func NewDated(dir string) *Dated {
	return &Dated{Dir: dir}
}

// NameFor returns the absolute destination path of output index.
func (d *Dated) NameFor(index int) string {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	id := shortID
	if d.ID != nil {
		id = d.ID
	}
	name := fmt.Sprintf("%s-document-%02d-%s.pdf", now().Format("2006-01-02"), index, id())

	dir := d.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, name)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
}
