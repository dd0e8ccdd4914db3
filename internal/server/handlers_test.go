package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/geometry"
	"github.com/MeKo-Tech/cellgrid/internal/ocr"
	"github.com/MeKo-Tech/cellgrid/internal/session"
	"github.com/MeKo-Tech/cellgrid/internal/testutil"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu    sync.Mutex
	saved map[string][]workspace.Entry
}

func (m *memorySink) Save(_ context.Context, id string, entries []workspace.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]workspace.Entry)
	}
	m.saved[id] = entries
	return nil
}

func (m *memorySink) Load(_ context.Context, id string) ([]workspace.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id], nil
}

func (m *memorySink) Close() error { return nil }

// fixtureAnalyzer answers main uploads with the merged 2x2 table and crops
// with the plain one.
func fixtureAnalyzer() ocr.Analyzer {
	return ocr.AnalyzerFunc(func(_ context.Context, doc ocr.Document) ([]blocks.Block, error) {
		if doc.MIME == geometry.CropMIME {
			return testutil.TwoByTwo().Blocks(), nil
		}
		return testutil.TwoByTwoMerged().Blocks(), nil
	})
}

func newTestServer(t *testing.T, analyzer ocr.Analyzer, mutate ...func(*Config)) (*Server, *http.ServeMux) {
	t.Helper()
	cfg := Config{CORSOrigin: "*", MaxUploadMB: 10, OverlayEnabled: true}
	for _, m := range mutate {
		m(&cfg)
	}
	svc := session.NewService(session.Options{Analyzer: analyzer, Sink: &memorySink{}})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	srv, err := NewServer(cfg, svc)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	return srv, mux
}

func multipartUpload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func do(t *testing.T, mux http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, mux http.Handler, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return do(t, mux, method, path, body, "application/json")
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func createSession(t *testing.T, mux http.Handler) SessionResponse {
	t.Helper()
	body, ct := multipartUpload(t, "file", "scan.png", testutil.EncodePNG(t, 200, 100))
	w := do(t, mux, http.MethodPost, "/api/sessions", body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp
}

func TestServer_HealthHandler(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, "/health", nil, "")
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "cellgrid", response.Service)
				assert.NotEmpty(t, response.Time)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	do(t, mux, http.MethodGet, "/health", nil, "")

	w := do(t, mux, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cellgrid_http_requests_total")
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	assert.Error(t, err)
}

func TestServer_AnalyzeHandler(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	png := testutil.EncodePNG(t, 40, 20)

	t.Run("raw blocks", func(t *testing.T) {
		body, ct := multipartUpload(t, "file", "scan.png", png)
		w := do(t, mux, http.MethodPost, "/api/analyze", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		list, err := blocks.ParseResponse(w.Body.Bytes())
		require.NoError(t, err)
		assert.Len(t, list, len(testutil.TwoByTwoMerged().Blocks()))
	})

	t.Run("tables", func(t *testing.T) {
		body, ct := multipartUpload(t, "file", "scan.png", png)
		w := do(t, mux, http.MethodPost, "/api/analyze?format=tables", body, ct)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Tables []json.RawMessage `json:"tables"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Tables, 1)
	})
}

func TestServer_AnalyzeHandler_Validation(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer(), func(c *Config) { c.MaxUploadMB = 1 })
	png := testutil.EncodePNG(t, 40, 20)

	tests := []struct {
		name     string
		field    string
		filename string
		data     []byte
		status   int
		typ      string
		code     apperr.Code
	}{
		{name: "no file part", status: http.StatusBadRequest, typ: "Validation Error", code: apperr.CodeNoFile},
		{name: "wrong extension", field: "file", filename: "scan.gif", data: png, status: http.StatusBadRequest, typ: "Validation Error", code: apperr.CodeInvalidFileType},
		{name: "empty file", field: "file", filename: "scan.png", data: []byte{}, status: http.StatusBadRequest, typ: "File Error", code: apperr.CodeEmptyFile},
		{name: "too large", field: "file", filename: "scan.png", data: append(append([]byte{}, png...), make([]byte, 2<<20)...), status: http.StatusRequestEntityTooLarge, typ: "File Error", code: apperr.CodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartUpload(t, tt.field, tt.filename, tt.data)
			w := do(t, mux, http.MethodPost, "/api/analyze", body, ct)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decodeError(t, w)
			assert.Equal(t, tt.typ, resp.Type)
			assert.Equal(t, string(tt.code), resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_AnalyzeHandler_BackendError(t *testing.T) {
	failing := ocr.AnalyzerFunc(func(context.Context, ocr.Document) ([]blocks.Block, error) {
		return nil, apperr.OCR(apperr.CodeOCRFailed, "Textract service error: throttled", errors.New("throttled"))
	})
	_, mux := newTestServer(t, failing)

	body, ct := multipartUpload(t, "file", "scan.png", testutil.EncodePNG(t, 40, 20))
	w := do(t, mux, http.MethodPost, "/api/analyze", body, ct)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "AWS Error", resp.Type)
	assert.Equal(t, "Textract service error: throttled", resp.Error)
}

func TestServer_SessionLifecycle(t *testing.T) {
	sink := &memorySink{}
	svc := session.NewService(session.Options{Analyzer: fixtureAnalyzer(), Sink: sink})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	srv, err := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 10}, svc)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	created := createSession(t, mux)
	base := "/api/sessions/" + created.ID
	require.Len(t, created.View.Tables, 1)
	assert.Equal(t, workspace.MainDocumentID, created.View.Tables[0].Document)

	w := do(t, mux, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// Selecting an absorbed cell selects its merged root.
	w = doJSON(t, mux, http.MethodPost, base+"/selection", SelectionRequest{DocumentID: "main", CellID: "c2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sel SelectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Equal(t, workspace.CellRef{Document: "main", Block: "m1"}, sel.Cell)
	assert.True(t, sel.Selected)

	w = doJSON(t, mux, http.MethodPut, base+"/tags/main/c2", TagRequest{SensorTag: "TT-100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tag TagResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tag))
	assert.Equal(t, "m1", tag.Cell.Block)

	w = doJSON(t, mux, http.MethodPut, base+"/tags/main/c4", TagRequest{SensorTag: "PT-7"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, mux, http.MethodDelete, base+"/tags/main/c4", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, mux, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Equal(t, 1, saved.Saved)
	assert.Equal(t, "m1", saved.Entries[0].BlockID)
	assert.Equal(t, "TT-100", saved.Entries[0].SensorTag)

	sink.mu.Lock()
	assert.Len(t, sink.saved[created.ID], 1)
	sink.mu.Unlock()

	w = do(t, mux, http.MethodGet, base+"/save", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stored SaveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, saved, stored)

	w = do(t, mux, http.MethodDelete, base, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, mux, http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Not Found", resp.Type)
	assert.Equal(t, string(apperr.CodeSessionNotFound), resp.Code)
}

func TestServer_SavedWithForwardingSink(t *testing.T) {
	svc := session.NewService(session.Options{Analyzer: fixtureAnalyzer()})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	srv, err := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 10}, svc)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	created := createSession(t, mux)

	w := do(t, mux, http.MethodGet, "/api/sessions/"+created.ID+"/save", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperr.CodeNotStored), decodeError(t, w).Code)
}

func TestServer_TagUnknownCell(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	created := createSession(t, mux)

	w := doJSON(t, mux, http.MethodPut, "/api/sessions/"+created.ID+"/tags/main/ghost", TagRequest{SensorTag: "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, mux, http.MethodPut, "/api/sessions/"+created.ID+"/tags/main/t1", TagRequest{SensorTag: "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperr.CodeNotTaggable), decodeError(t, w).Code)
}

func TestServer_UploadReplacesMain(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	created := createSession(t, mux)

	body, ct := multipartUpload(t, "file", "next.png", testutil.EncodePNG(t, 100, 100))
	w := do(t, mux, http.MethodPost, "/api/sessions/"+created.ID+"/documents", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.View.Generation, created.View.Generation)
	require.Len(t, resp.View.Documents, 1)
	assert.Equal(t, "next.png", resp.View.Documents[0].Name)
}

func TestServer_CropHandler(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	created := createSession(t, mux)
	path := "/api/sessions/" + created.ID + "/crops"

	w := doJSON(t, mux, http.MethodPost, path, session.CropRequest{
		DocumentID: workspace.MainDocumentID,
		Rect:       geometry.Rect{X: 10, Y: 10, Width: 100, Height: 50},
		Display:    geometry.Size{Width: 200, Height: 100},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res session.CropResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "crop-1", res.Document.ID)
	assert.Equal(t, geometry.PixelRect{X: 10, Y: 10, Width: 100, Height: 50}, res.Source)
	assert.Len(t, res.View.Tables, 2)

	tests := []struct {
		name   string
		body   string
		status int
		code   apperr.Code
	}{
		{name: "malformed", body: `{"documentId":`, status: http.StatusBadRequest, code: apperr.CodeInvalidRequest},
		{name: "unknown field", body: `{"documentId":"main","zoom":2}`, status: http.StatusBadRequest, code: apperr.CodeInvalidRequest},
		{name: "missing document", body: `{"rect":{"x":1,"y":1,"width":50,"height":50}}`, status: http.StatusBadRequest, code: apperr.CodeInvalidRequest},
		{name: "unknown document", body: `{"documentId":"crop-9","rect":{"x":1,"y":1,"width":50,"height":50},"display":{"width":200,"height":100}}`, status: http.StatusNotFound, code: apperr.CodeDocumentNotFound},
		{name: "too small", body: `{"documentId":"main","rect":{"x":1,"y":1,"width":2,"height":50},"display":{"width":200,"height":100}}`, status: http.StatusBadRequest, code: apperr.CodeSelectionTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, http.MethodPost, path, strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, string(tt.code), decodeError(t, w).Code)
		})
	}
}

func TestServer_FieldHandlers(t *testing.T) {
	_, mux := newTestServer(t, fixtureAnalyzer())
	created := createSession(t, mux)
	base := "/api/sessions/" + created.ID + "/fields"

	w := doJSON(t, mux, http.MethodPost, base, session.FieldInput{Label: "Ambient", ValueType: "int", SensorTag: "AT-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var field workspace.CustomField
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &field))
	require.NotEmpty(t, field.ID)
	assert.Equal(t, workspace.ValueInt, field.ValueType)

	w = doJSON(t, mux, http.MethodPut, base+"/"+field.ID, session.FieldInput{Label: "Ambient", ValueType: "string", SensorTag: "AT-2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &field))
	assert.Equal(t, "AT-2", field.SensorTag)

	w = doJSON(t, mux, http.MethodPost, base, session.FieldInput{Label: "Bad", ValueType: "float"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, mux, http.MethodDelete, base+"/"+field.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, mux, http.MethodDelete, base+"/"+field.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_OverlayHandler(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		_, mux := newTestServer(t, fixtureAnalyzer())
		created := createSession(t, mux)

		w := do(t, mux, http.MethodGet, "/api/sessions/"+created.ID+"/documents/main/overlay.png", nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("disabled", func(t *testing.T) {
		_, mux := newTestServer(t, fixtureAnalyzer(), func(c *Config) { c.OverlayEnabled = false })
		created := createSession(t, mux)

		w := do(t, mux, http.MethodGet, "/api/sessions/"+created.ID+"/documents/main/overlay.png", nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  *apperr.Error
		want string
	}{
		{apperr.Input(apperr.CodeNoFile, "No file selected"), "Validation Error"},
		{apperr.Input(apperr.CodeEmptyFile, "Empty file uploaded"), "File Error"},
		{apperr.Input(apperr.CodeFileTooLarge, "File too large"), "File Error"},
		{apperr.Input(apperr.CodeInvalidDocument, "Invalid document format or corrupted file"), "AWS Error"},
		{apperr.OCR(apperr.CodeOCRFailed, "Textract service error", nil), "AWS Error"},
		{apperr.NotFound(apperr.CodeSessionNotFound, "missing"), "Not Found"},
		{apperr.Internal(apperr.CodeInternal, "boom", nil), "Server Error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, errorType(tt.err))
		})
	}
}

func TestServer_WriteError_Unclassified(t *testing.T) {
	s := &Server{}
	w := httptest.NewRecorder()
	s.writeError(w, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Server Error", resp.Type)
	assert.Equal(t, "An unexpected error occurred. Please try again.", resp.Error)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}
