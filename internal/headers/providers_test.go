package headers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRequest = Request{
	Image: []byte{0x89, 'P', 'N', 'G'},
	MIME:  "image/png",
	Cells: []Cell{{CellID: "c4", Text: " 42 "}, {CellID: "c3", Text: "Temp"}},
}

func TestOpenAIInferrer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"c4\": {\"row\": \"Temp\", \"col\": \"Value\"}}"}}]
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIInferrer("sk-test", "", openaioption.WithBaseURL(srv.URL), openaioption.WithMaxRetries(0))
	res, err := p.Infer(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, map[string]Headers{"c4": {Row: "Temp", Col: "Value"}}, res.Normalize())

	assert.Equal(t, DefaultOpenAIModel, body["model"])
	format, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	raw, _ := json.Marshal(body["messages"])
	assert.Contains(t, string(raw), "data:image/png;base64,")
	assert.Contains(t, string(raw), `\"cellId\":\"c4\"`)
}

func TestOpenAIInferrer_UnusableAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "no idea"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIInferrer("sk-test", "m", openaioption.WithBaseURL(srv.URL), openaioption.WithMaxRetries(0))
	_, err := p.Infer(context.Background(), testRequest)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindHeaders))
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeHeadersShape, ae.Code)
}

func TestAnthropicInferrer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [{"type": "text", "text": "[{\"cellId\": \"c3\", \"headers\": {\"row\": \"Temp\", \"col\": \"Sensor\"}}]"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicInferrer("ak-test", "claude", anthropicoption.WithBaseURL(srv.URL), anthropicoption.WithMaxRetries(0))
	res, err := p.Infer(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, ShapeEntries, res.Shape)
	assert.Equal(t, map[string]Headers{"c3": {Row: "Temp", Col: "Sensor"}}, res.Normalize())

	assert.Equal(t, "claude", body["model"])
	raw, _ := json.Marshal(body["messages"])
	assert.Contains(t, string(raw), `"media_type":"image/png"`)
}

func TestAnthropicInferrer_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewAnthropicInferrer("ak-test", "", anthropicoption.WithBaseURL(srv.URL), anthropicoption.WithMaxRetries(0))
	_, err := p.Infer(context.Background(), testRequest)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindHeaders))
}

func TestRemoteInferrer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var cells []Cell
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("cells")), &cells))
		assert.Equal(t, []Cell{{CellID: "c4", Text: "42"}, {CellID: "c3", Text: "Temp"}}, cells)

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "image.png", header.Filename)

		_, _ = io.WriteString(w, `{"c4": {"row": "Temp", "col": "Value"}}`)
	}))
	defer srv.Close()

	res, err := NewRemoteInferrer(srv.URL, time.Second).Infer(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, ShapeKeyed, res.Shape)
}

func TestRemoteInferrer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   apperr.Code
	}{
		{"server error", http.StatusBadGateway, `{"error": "down"}`, apperr.CodeHeadersFailed},
		{"wrong shape", http.StatusOK, `"hello"`, apperr.CodeHeadersShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewRemoteInferrer(srv.URL, time.Second).Infer(context.Background(), testRequest)
			ae, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, ae.Code)
		})
	}
}
