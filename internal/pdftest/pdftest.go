// Package pdftest builds small, well-formed PDFs for tests: blank pages
// with distinct widths, optionally carrying a full-page QR code.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Page describes one page of a generated document.
type Page struct {
	Width  float64 // points; defaults to 200
	Height float64 // points; defaults to 200
	QR     string  // payload drawn as a page-filling QR code when non-empty
}

// Blank returns n content pages whose widths are 101, 102, ... points so
// tests can tell pages apart after extraction.
func Blank(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: float64(101 + i)}
	}
	return pages
}

type object struct {
	dict   string
	stream []byte
}

// Build serializes pages into a PDF with a classic xref table.
func Build(pages ...Page) ([]byte, error) {
	objs := []object{{dict: "<< /Type /Catalog /Pages 2 0 R >>"}, {}}
	kids := make([]string, 0, len(pages))

	for _, p := range pages {
		w, h := p.Width, p.Height
		if w <= 0 {
			w = 200
		}
		if h <= 0 {
			h = 200
		}
		pageNum := len(objs) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
		if p.QR == "" {
			objs = append(objs, object{dict: fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >> >>", w, h)})
			continue
		}

		side := int(minf(w, h))
		img, err := qrImage(p.QR, side)
		if err != nil {
			return nil, err
		}
		contentNum, imageNum := pageNum+1, pageNum+2
		content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", side, side)
		objs = append(objs,
			object{dict: fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>", w, h, imageNum, contentNum)},
			object{dict: fmt.Sprintf("<< /Length %d >>", len(content)), stream: []byte(content)},
			object{dict: fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>", side, side, len(img.Pix)), stream: img.Pix},
		)
	}
	objs[1] = object{dict: fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", i+1, o.dict)
		if o.stream != nil {
			buf.WriteString("stream\n")
			buf.Write(o.stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes(), nil
}

// Write builds the document into dir/name and returns its path.
func Write(tb testing.TB, dir, name string, pages ...Page) string {
	tb.Helper()
	b, err := Build(pages...)
	if err != nil {
		tb.Fatalf("build pdf: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		tb.Fatalf("write pdf: %v", err)
	}
	return path
}

// QRImage renders payload as a side x side grayscale QR code.
func QRImage(payload string, side int) (*image.Gray, error) {
	return qrImage(payload, side)
}

func qrImage(payload string, side int) (*image.Gray, error) {
	m, err := qrcode.NewQRCodeWriter().Encode(payload, gozxing.BarcodeFormat_QR_CODE, side, side, nil)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	img := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			c := color.Gray{Y: 255}
			if x < m.GetWidth() && y < m.GetHeight() && m.Get(x, y) {
				c = color.Gray{Y: 0}
			}
			img.SetGray(x, y, c)
		}
	}
	return img, nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
