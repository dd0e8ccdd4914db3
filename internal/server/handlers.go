package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/ocr"
	"github.com/MeKo-Tech/cellgrid/internal/session"
	"github.com/MeKo-Tech/cellgrid/internal/version"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

const (
	uploadField = "file"
	formatGrid  = "tables"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest,
			fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)), http.StatusMethodNotAllowed)
		return
	}

	v, _, _ := version.Info()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "cellgrid",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// analyzeHandler runs OCR on an upload and returns the raw block graph, or
// the reconstructed tables with ?format=tables.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	list, err := s.service.Analyze(r.Context(), doc)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == formatGrid {
		tables := grid.BuildAll(blocks.Build(list))
		if tables == nil {
			tables = []*grid.Table{}
		}
		s.writeJSON(w, http.StatusOK, struct {
			Tables []*grid.Table `json:"tables"`
		}{Tables: tables})
		return
	}

	if list == nil {
		list = []blocks.Block{}
	}
	s.writeJSON(w, http.StatusOK, blocks.Response{Blocks: list})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, view, err := s.service.Create(r.Context(), doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id)
	s.writeJSON(w, http.StatusCreated, SessionResponse{ID: id, View: view})
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.service.View(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{ID: id, View: view})
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Close(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadHandler replaces the main document of a session. The previous grids
// stay in place when the analysis fails.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id := r.PathValue("id")
	view, err := s.service.Upload(r.Context(), id, doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{ID: id, View: view})
}

func (s *Server) cropHandler(w http.ResponseWriter, r *http.Request) {
	var req session.CropRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.DocumentID == "" {
		s.writeError(w, apperr.Input(apperr.CodeInvalidRequest, "documentId is required"))
		return
	}

	res, err := s.service.Crop(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) overlayHandler(w http.ResponseWriter, r *http.Request) {
	if !s.overlayEnabled {
		s.writeErrorResponse(w, apperr.Input(apperr.CodeInvalidRequest, "overlay output disabled"), http.StatusForbidden)
		return
	}

	data, err := s.service.Overlay(r.Context(), r.PathValue("id"), r.PathValue("doc"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write overlay", "error", err)
	}
}

func (s *Server) selectionHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.CellID == "" {
		s.writeError(w, apperr.Input(apperr.CodeInvalidRequest, "cellId is required"))
		return
	}

	ref := workspace.CellRef{Document: req.DocumentID, Block: req.CellID}
	cell, selected, err := s.service.Select(r.Context(), r.PathValue("id"), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SelectionResponse{Cell: cell, Selected: selected})
}

func (s *Server) setTagHandler(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cell, err := s.service.SetTag(r.Context(), r.PathValue("id"), cellRef(r), req.SensorTag)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TagResponse{Cell: cell, SensorTag: req.SensorTag})
}

func (s *Server) deleteTagHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.DeleteTag(r.Context(), r.PathValue("id"), cellRef(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addFieldHandler(w http.ResponseWriter, r *http.Request) {
	var in session.FieldInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	field, err := s.service.AddField(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, field)
}

func (s *Server) updateFieldHandler(w http.ResponseWriter, r *http.Request) {
	var in session.FieldInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	field, err := s.service.UpdateField(r.Context(), r.PathValue("id"), r.PathValue("field"), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, field)
}

func (s *Server) deleteFieldHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteField(r.Context(), r.PathValue("id"), r.PathValue("field")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Save(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []workspace.Entry{}
	}
	s.writeJSON(w, http.StatusOK, SaveResponse{Saved: len(entries), Entries: entries})
}

func (s *Server) savedHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Saved(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []workspace.Entry{}
	}
	s.writeJSON(w, http.StatusOK, SaveResponse{Saved: len(entries), Entries: entries})
}

func cellRef(r *http.Request) workspace.CellRef {
	return workspace.CellRef{Document: r.PathValue("doc"), Block: r.PathValue("cell")}
}

// readUpload reads and validates the multipart file part of r.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (ocr.Document, error) {
	limit := s.maxUploadMB << 20
	// Leave room for the multipart envelope so the size check below reports
	// the file size rather than a truncated body.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "body too large") {
			return ocr.Document{}, s.tooLarge()
		}
		return ocr.Document{}, apperr.Input(apperr.CodeNoFile, "No file part in the request")
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return ocr.Document{}, apperr.Input(apperr.CodeNoFile, "No file part in the request")
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		return ocr.Document{}, s.tooLarge()
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return ocr.Document{}, apperr.Input(apperr.CodeEmptyFile, "Failed to read uploaded file")
	}
	uploadSizeBytes.Observe(float64(len(data)))

	return s.validator.Validate(header.Filename, header.Header.Get("Content-Type"), data)
}

func (s *Server) tooLarge() error {
	return apperr.Input(apperr.CodeFileTooLarge,
		fmt.Sprintf("File too large. Maximum size allowed: %dMB", s.maxUploadMB))
}

// decodeJSON reads a small JSON request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Input(apperr.CodeInvalidRequest, fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps err onto its HTTP status and error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		slog.Error("Unhandled request error", "error", err)
		e = apperr.Internal(apperr.CodeInternal, "An unexpected error occurred. Please try again.", err)
	}
	s.writeErrorResponse(w, e, e.HTTPStatus())
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, e *apperr.Error, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Type:    errorType(e),
		Error:   e.Message,
		Code:    string(e.Code),
		Details: e.Details,
	})
}

// errorType returns the error category label clients already switch on.
func errorType(e *apperr.Error) string {
	switch e.Kind {
	case apperr.KindInput:
		switch e.Code {
		case apperr.CodeEmptyFile, apperr.CodeFileTooLarge:
			return "File Error"
		case apperr.CodeInvalidDocument:
			return "AWS Error"
		}
		return "Validation Error"
	case apperr.KindOCR:
		return "AWS Error"
	default:
		return e.Kind.String()
	}
}
