package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
)

const maxResponseBytes = 64 << 20

// RemoteAnalyzer posts the document as the multipart part "file" to an HTTP
// backend answering with {"Blocks": [...]}.
type RemoteAnalyzer struct {
	endpoint string
	client   *http.Client
}

// NewRemoteAnalyzer creates an analyzer for endpoint.
func NewRemoteAnalyzer(endpoint string, timeout time.Duration) *RemoteAnalyzer {
	return &RemoteAnalyzer{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Analyze implements Analyzer.
func (a *RemoteAnalyzer) Analyze(ctx context.Context, doc Document) ([]blocks.Block, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, doc.Name))
	h.Set("Content-Type", doc.MIME)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to encode upload", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to encode upload", err)
	}
	if err := w.Close(); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to encode upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, &buf)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to create request", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.OCR(apperr.CodeOCRFailed, "OCR backend unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.OCR(apperr.CodeOCRFailed, "failed to read OCR response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backendError(resp.StatusCode, data)
	}

	list, err := blocks.ParseResponse(data)
	if err != nil {
		return nil, apperr.OCR(apperr.CodeOCRMalformed, "Malformed OCR response", err)
	}
	return list, nil
}

// backendError turns a {"type","error"} failure body into an application
// error, keeping the backend's message.
func backendError(status int, data []byte) error {
	var body struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	msg := fmt.Sprintf("OCR backend returned %d", status)
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if status >= 400 && status < 500 {
		code := apperr.CodeInvalidDocument
		if status == http.StatusRequestEntityTooLarge {
			code = apperr.CodeFileTooLarge
		}
		return apperr.Input(code, msg).WithDetail("status", status)
	}
	return apperr.OCR(apperr.CodeOCRFailed, msg, nil).WithDetail("status", status)
}
