package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	log.Debug().Str("mime", mtype.String()).Str("ext", mtype.Extension()).Str("file", filePath).Msg("detected file type")
	return &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}, nil
}

// IsPDF reports whether the file content is a PDF, whatever its name.
func (d *Detector) IsPDF(filePath string) (bool, error) {
	info, err := d.Detect(filePath)
	if err != nil {
		return false, err
	}
	return mimetype.EqualsAny(info.MIMEType, pdfMIME), nil
}
