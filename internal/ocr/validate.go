package ocr

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// MIME types accepted for analysis.
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEJPG  = "image/jpg"
	MIMEPDF  = "application/pdf"
)

// DefaultMaxBytes is the synchronous Textract document limit.
const DefaultMaxBytes = 10 << 20

// DefaultExtensions are the accepted file extensions without the dot.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "pdf"}

var allowedMIME = []string{MIMEPNG, MIMEJPEG, MIMEJPG, MIMEPDF}

// Validator checks uploads before they are sent to the backend.
type Validator struct {
	MaxBytes   int64
	Extensions []string
}

// Validate checks an upload with the default extensions.
func Validate(name, mime string, data []byte, maxBytes int64) (Document, error) {
	return Validator{MaxBytes: maxBytes, Extensions: DefaultExtensions}.Validate(name, mime, data)
}

// Validate checks the file name, type, size and content of an upload. An
// empty mime is sniffed from the content.
func (v Validator) Validate(name, mime string, data []byte) (Document, error) {
	if name == "" {
		return Document{}, apperr.Input(apperr.CodeNoFile, "No file selected")
	}
	safe := SanitizeFilename(name)
	if safe == "" {
		return Document{}, apperr.Input(apperr.CodeInvalidFileType, "Invalid filename")
	}

	exts := v.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(safe), "."))
	mime = normalizeMIME(mime, ext, data)
	if !slices.Contains(exts, ext) || !slices.Contains(allowedMIME, mime) {
		return Document{}, apperr.Input(apperr.CodeInvalidFileType,
			"File type not allowed. Supported types: "+strings.Join(exts, ", ")).
			WithDetail("extension", ext).
			WithDetail("mime", mime)
	}

	if len(data) == 0 {
		return Document{}, apperr.Input(apperr.CodeEmptyFile, "Empty file uploaded")
	}
	maxBytes := v.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return Document{}, apperr.Input(apperr.CodeFileTooLarge,
			fmt.Sprintf("File too large. Maximum size allowed: %dMB", maxBytes>>20))
	}

	doc := Document{Name: safe, Data: data, MIME: mime}
	if mime == MIMEPDF {
		return doc, checkPDF(data)
	}

	meta, err := utils.DecodeImageConfig(data)
	if err != nil {
		return Document{}, invalidDocument(err)
	}
	if meta.Format != "png" && meta.Format != "jpeg" {
		return Document{}, apperr.Input(apperr.CodeInvalidFileType, fmt.Sprintf("Image content is %s, not png or jpeg", meta.Format))
	}
	doc.Width, doc.Height = meta.Width, meta.Height
	return doc, nil
}

// checkPDF rejects unreadable, encrypted and multi-page PDFs; synchronous
// analysis accepts a single page only.
func checkPDF(data []byte) error {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") {
			return apperr.Input(apperr.CodeInvalidDocument, "Encrypted PDFs are not supported")
		}
		return invalidDocument(err)
	}
	if pages != 1 {
		return apperr.Input(apperr.CodeInvalidDocument,
			fmt.Sprintf("PDF must have exactly one page, got %d", pages)).WithDetail("pages", pages)
	}
	return nil
}

func invalidDocument(cause error) error {
	e := apperr.Input(apperr.CodeInvalidDocument, "Invalid document format or corrupted file")
	e.Cause = cause
	return e
}

var extensionMIME = map[string]string{
	"png":  MIMEPNG,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"pdf":  MIMEPDF,
}

// normalizeMIME strips parameters and sniffs a missing or generic type. An
// empty upload has nothing to sniff and falls back to the extension.
func normalizeMIME(mime, ext string, data []byte) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || mime == "application/octet-stream" {
		if len(data) == 0 {
			return extensionMIME[ext]
		}
		mime = http.DetectContentType(data)
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
	}
	return mime
}

// SanitizeFilename strips directories and keeps ASCII letters, digits, dots,
// dashes and underscores. Whitespace becomes an underscore.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}
