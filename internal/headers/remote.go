package headers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
)

const maxRemoteBody = 8 << 20

// RemoteInferrer posts the image and cells to an HTTP backend as multipart
// form data (parts "image" and "cells").
type RemoteInferrer struct {
	endpoint string
	client   *http.Client
}

// NewRemoteInferrer creates an inferrer for endpoint. A zero timeout leaves
// the deadline to the request context.
func NewRemoteInferrer(endpoint string, timeout time.Duration) *RemoteInferrer {
	return &RemoteInferrer{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Infer implements Inferrer.
func (p *RemoteInferrer) Infer(ctx context.Context, req Request) (Result, error) {
	body, contentType, err := encodeRemoteRequest(req)
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "failed to encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "header service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, apperr.Headers(apperr.CodeHeadersFailed,
			fmt.Sprintf("header service returned %d", resp.StatusCode), nil).
			WithDetail("body", truncate(string(data), 200))
	}

	res, err := Parse(data)
	if err != nil {
		return Result{}, apperr.Headers(apperr.CodeHeadersShape, err.Error(), err)
	}
	return res, nil
}

func encodeRemoteRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	cells, err := json.Marshal(normalizeCells(req.Cells))
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("cells", string(cells)); err != nil {
		return nil, "", err
	}
	if len(req.Image) > 0 {
		part, err := w.CreateFormFile("image", "image"+extensionFor(req.MIME))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(req.Image); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func extensionFor(mime string) string {
	switch imageMIME(mime) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
