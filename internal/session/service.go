package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/cellgrid/internal/apperr"
	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/common"
	"github.com/MeKo-Tech/cellgrid/internal/geometry"
	"github.com/MeKo-Tech/cellgrid/internal/grid"
	"github.com/MeKo-Tech/cellgrid/internal/headers"
	"github.com/MeKo-Tech/cellgrid/internal/ocr"
	"github.com/MeKo-Tech/cellgrid/internal/overlay"
	"github.com/MeKo-Tech/cellgrid/internal/storage"
	"github.com/MeKo-Tech/cellgrid/internal/utils"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// DefaultHeaderTimeout bounds one header inference call.
const DefaultHeaderTimeout = 60 * time.Second

// Options wires the backends of a Service.
type Options struct {
	Analyzer       ocr.Analyzer
	Inferrer       headers.Inferrer // nil disables header inference
	Sink           storage.Sink
	Manager        *Manager
	MinSelectionPx int
	HeaderTimeout  time.Duration
	Style          overlay.Style
}

// Service implements the session operations on top of the backends.
type Service struct {
	analyzer      ocr.Analyzer
	inferrer      headers.Inferrer
	sink          storage.Sink
	manager       *Manager
	translator    geometry.Translator
	headerTimeout time.Duration
	style         overlay.Style

	wg sync.WaitGroup
}

// NewService creates a service. Missing options get defaults.
func NewService(opts Options) *Service {
	s := &Service{
		analyzer:      opts.Analyzer,
		inferrer:      opts.Inferrer,
		sink:          opts.Sink,
		manager:       opts.Manager,
		translator:    geometry.Translator{MinPx: opts.MinSelectionPx},
		headerTimeout: opts.HeaderTimeout,
		style:         opts.Style,
	}
	if s.sink == nil {
		s.sink = storage.NewLogSink(nil)
	}
	if s.manager == nil {
		s.manager = NewManager(0, 0)
	}
	if s.translator.MinPx <= 0 {
		s.translator.MinPx = geometry.MinSelectionPx
	}
	if s.headerTimeout <= 0 {
		s.headerTimeout = DefaultHeaderTimeout
	}
	if s.style.Thickness == 0 {
		s.style = overlay.DefaultStyle()
	}
	return s
}

// Manager returns the session manager.
func (s *Service) Manager() *Manager { return s.manager }

// Analyze runs OCR on a validated document without touching any session.
func (s *Service) Analyze(ctx context.Context, doc ocr.Document) ([]blocks.Block, error) {
	return s.analyze(ctx, doc, workspace.KindMain)
}

func (s *Service) analyze(ctx context.Context, doc ocr.Document, kind workspace.DocumentKind) ([]blocks.Block, error) {
	timer := common.NewTimer("ocr")
	list, err := s.analyzer.Analyze(ctx, doc)
	elapsed := timer.Stop()
	ocrDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())

	if err != nil {
		ocrRequestsTotal.WithLabelValues(string(kind), "error").Inc()
		slog.Error("OCR failed", "file", doc.Name, "kind", kind, "error", err)
		return nil, err
	}
	ocrRequestsTotal.WithLabelValues(string(kind), "success").Inc()
	slog.Info("OCR completed", "file", doc.Name, "kind", kind, "blocks", len(list), "timer", timer)
	return list, nil
}

// Create analyzes doc and opens a session holding it. No session is created
// when the analysis fails.
func (s *Service) Create(ctx context.Context, doc ocr.Document) (string, workspace.View, error) {
	list, err := s.analyze(ctx, doc, workspace.KindMain)
	if err != nil {
		return "", workspace.View{}, err
	}

	sess, err := s.manager.Create()
	if err != nil {
		return "", workspace.View{}, err
	}

	var gen uint64
	if err := sess.Do(ctx, func(w *workspace.Workspace) error {
		gen = w.BeginAnalysis()
		return nil
	}); err != nil {
		return "", workspace.View{}, err
	}

	view, err := s.commitMain(ctx, sess, gen, doc, list)
	if err != nil {
		s.manager.Remove(sess.ID())
		return "", workspace.View{}, err
	}
	return sess.ID(), view, nil
}

// Upload replaces the session content with a newly analyzed document. Any
// header inference still running for the previous document is ignored from
// now on. A failed analysis leaves the current grids in place.
func (s *Service) Upload(ctx context.Context, id string, doc ocr.Document) (workspace.View, error) {
	sess, err := s.manager.Get(id)
	if err != nil {
		return workspace.View{}, err
	}

	var gen uint64
	if err := sess.Do(ctx, func(w *workspace.Workspace) error {
		gen = w.BeginAnalysis()
		return nil
	}); err != nil {
		return workspace.View{}, err
	}

	list, err := s.analyze(ctx, doc, workspace.KindMain)
	if err != nil {
		return workspace.View{}, err
	}
	return s.commitMain(ctx, sess, gen, doc, list)
}

func (s *Service) commitMain(ctx context.Context, sess *Session, gen uint64, doc ocr.Document, list []blocks.Block) (workspace.View, error) {
	var (
		view workspace.View
		job  headerJob
	)
	err := sess.Do(ctx, func(w *workspace.Workspace) error {
		if w.Generation() != gen {
			return superseded()
		}
		w.Reset()
		sess.publish(Event{Type: EventSessionReset, Generation: gen})

		d := &workspace.Document{
			ID:     workspace.MainDocumentID,
			Name:   doc.Name,
			Kind:   workspace.KindMain,
			MIME:   doc.MIME,
			Width:  doc.Width,
			Height: doc.Height,
			Image:  doc.Data,
		}
		tables, err := w.AddDocument(d, list)
		if err != nil {
			return err
		}
		tablesBuilt.Observe(float64(len(tables)))
		sess.publish(Event{Type: EventAnalysisCompleted, Generation: gen, Document: d.ID, Count: len(tables)})

		job = s.newHeaderJob(w, gen, d)
		view = w.Snapshot()
		return nil
	})
	if err != nil {
		return workspace.View{}, err
	}
	s.inferHeaders(sess, job)
	return view, nil
}

// CropRequest describes a rectangle drawn over a displayed document.
type CropRequest struct {
	DocumentID string        `json:"documentId"`
	Rect       geometry.Rect `json:"rect"`
	Display    geometry.Size `json:"display"`
}

// CropResult is the document created from a crop.
type CropResult struct {
	Document workspace.Document `json:"document"`
	Source   geometry.PixelRect `json:"source"`
	Tables   []*grid.Table      `json:"tables"`
	View     workspace.View     `json:"view"`
}

// Crop translates the drawn rectangle into source pixels, analyzes that part
// of the image and merges the result as a new document.
func (s *Service) Crop(ctx context.Context, id string, req CropRequest) (CropResult, error) {
	sess, err := s.manager.Get(id)
	if err != nil {
		return CropResult{}, err
	}

	var (
		gen    uint64
		parent workspace.Document
	)
	if err := sess.Do(ctx, func(w *workspace.Workspace) error {
		d, ok := w.Document(req.DocumentID)
		if !ok {
			return apperr.NotFound(apperr.CodeDocumentNotFound, fmt.Sprintf("Document %s not found", req.DocumentID))
		}
		gen, parent = w.Generation(), *d
		return nil
	}); err != nil {
		return CropResult{}, err
	}

	if parent.MIME == ocr.MIMEPDF || len(parent.Image) == 0 {
		return CropResult{}, apperr.Input(apperr.CodeInvalidRequest, "Cropping is only supported for image documents")
	}

	rect, err := s.translator.Translate(req.Rect, req.Display,
		geometry.Size{Width: float64(parent.Width), Height: float64(parent.Height)})
	if err == nil {
		rect, err = s.translator.Clamp(rect, parent.Width, parent.Height)
	}
	if err != nil {
		return CropResult{}, selectionError(err)
	}

	img, _, err := utils.DecodeImage(parent.Image)
	if err != nil {
		return CropResult{}, apperr.Internal(apperr.CodeInternal, "failed to decode document image", err)
	}
	data, err := geometry.CropJPEG(img, rect)
	if err != nil {
		return CropResult{}, apperr.Internal(apperr.CodeInternal, "failed to crop document image", err)
	}

	doc := ocr.Document{Name: geometry.CropName, Data: data, MIME: geometry.CropMIME, Width: rect.Width, Height: rect.Height}
	list, err := s.analyze(ctx, doc, workspace.KindCrop)
	if err != nil {
		return CropResult{}, err
	}

	var (
		res CropResult
		job headerJob
	)
	err = sess.Do(ctx, func(w *workspace.Workspace) error {
		if w.Generation() != gen {
			return superseded()
		}
		d := &workspace.Document{
			ID:     fmt.Sprintf("crop-%d", len(w.Documents())),
			Name:   doc.Name,
			Kind:   workspace.KindCrop,
			Parent: parent.ID,
			Crop:   &rect,
			MIME:   doc.MIME,
			Width:  doc.Width,
			Height: doc.Height,
			Image:  doc.Data,
		}
		tables, err := w.AddDocument(d, list)
		if err != nil {
			return err
		}
		tablesBuilt.Observe(float64(len(tables)))
		sess.publish(Event{Type: EventDocumentAdded, Generation: gen, Document: d.ID, Count: len(tables)})

		job = s.newHeaderJob(w, gen, d)
		res = CropResult{Document: *d, Source: rect, Tables: tables, View: w.Snapshot()}
		return nil
	})
	if err != nil {
		return CropResult{}, err
	}
	s.inferHeaders(sess, job)
	return res, nil
}

func selectionError(err error) error {
	if errors.Is(err, geometry.ErrSelectionTooSmall) {
		e := apperr.Input(apperr.CodeSelectionTooSmall, "Selection is too small")
		e.Cause = err
		return e
	}
	e := apperr.Input(apperr.CodeInvalidRequest, "Invalid selection or display size")
	e.Cause = err
	return e
}

func superseded() error {
	return apperr.New(apperr.KindConflict, apperr.CodeSuperseded, "A newer upload replaced this analysis")
}

// View returns a snapshot of the session.
func (s *Service) View(ctx context.Context, id string) (workspace.View, error) {
	var view workspace.View
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		view = w.Snapshot()
		return nil
	})
	return view, err
}

// Select toggles the selection of the canonical cell behind ref.
func (s *Service) Select(ctx context.Context, id string, ref workspace.CellRef) (workspace.CellRef, bool, error) {
	var (
		cur      workspace.CellRef
		selected bool
	)
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		var err error
		cur, selected, err = w.Select(ref)
		return err
	})
	return cur, selected, err
}

// SetTag stores a tag on the canonical cell behind ref.
func (s *Service) SetTag(ctx context.Context, id string, ref workspace.CellRef, tag string) (workspace.CellRef, error) {
	var root workspace.CellRef
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		var err error
		root, err = w.SetTag(ref, tag)
		return err
	})
	return root, err
}

// DeleteTag removes the tag of the canonical cell behind ref.
func (s *Service) DeleteTag(ctx context.Context, id string, ref workspace.CellRef) (workspace.CellRef, error) {
	var root workspace.CellRef
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		var err error
		root, err = w.DeleteTag(ref)
		return err
	})
	return root, err
}

// FieldInput is the editable part of a custom field.
type FieldInput struct {
	Label     string `json:"label"`
	ValueType string `json:"valueType"`
	SensorTag string `json:"sensorTag"`
}

// AddField declares a custom field.
func (s *Service) AddField(ctx context.Context, id string, in FieldInput) (workspace.CustomField, error) {
	var f workspace.CustomField
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		added, err := w.AddField(in.Label, in.ValueType, in.SensorTag)
		if err != nil {
			return err
		}
		f = *added
		return nil
	})
	return f, err
}

// UpdateField edits a custom field.
func (s *Service) UpdateField(ctx context.Context, id, fieldID string, in FieldInput) (workspace.CustomField, error) {
	var f workspace.CustomField
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		updated, err := w.UpdateField(fieldID, in.Label, in.ValueType, in.SensorTag)
		if err != nil {
			return err
		}
		f = *updated
		return nil
	})
	return f, err
}

// DeleteField removes a custom field.
func (s *Service) DeleteField(ctx context.Context, id, fieldID string) error {
	return s.do(ctx, id, func(w *workspace.Workspace) error {
		return w.DeleteField(fieldID)
	})
}

// Save builds the payload and hands it to the storage sink.
func (s *Service) Save(ctx context.Context, id string) ([]workspace.Entry, error) {
	sess, err := s.manager.Get(id)
	if err != nil {
		return nil, err
	}

	var entries []workspace.Entry
	if err := sess.Do(ctx, func(w *workspace.Workspace) error {
		entries = w.Entries()
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.sink.Save(ctx, id, entries); err != nil {
		return nil, apperr.Internal(apperr.CodeStorageFailed, "Failed to save tags", err)
	}
	sess.publish(Event{Type: EventTagsSaved, Count: len(entries)})
	slog.Info("Tags saved", "session", id, "entries", len(entries))
	return entries, nil
}

// Saved reads the payload last stored for a session back from the sink.
// Sinks that only forward the payload report it as not stored.
func (s *Service) Saved(ctx context.Context, id string) ([]workspace.Entry, error) {
	if _, err := s.manager.Get(id); err != nil {
		return nil, err
	}
	loader, ok := s.sink.(storage.Loader)
	if !ok {
		return nil, apperr.NotFound(apperr.CodeNotStored, "The configured storage sink does not keep saved tags")
	}
	entries, err := loader.Load(ctx, id)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeStorageFailed, "Failed to load saved tags", err)
	}
	return entries, nil
}

// Overlay renders the regions of a document over its image as PNG.
func (s *Service) Overlay(ctx context.Context, id, documentID string) ([]byte, error) {
	var (
		data    []byte
		mime    string
		regions []overlay.Region
	)
	err := s.do(ctx, id, func(w *workspace.Workspace) error {
		d, ok := w.Document(documentID)
		if !ok {
			return apperr.NotFound(apperr.CodeDocumentNotFound, fmt.Sprintf("Document %s not found", documentID))
		}
		var err error
		regions, err = w.Regions(documentID)
		data, mime = d.Image, d.MIME
		return err
	})
	if err != nil {
		return nil, err
	}
	if mime == ocr.MIMEPDF || len(data) == 0 {
		return nil, apperr.Input(apperr.CodeInvalidRequest, "Overlay rendering is only supported for image documents")
	}

	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to decode document image", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, overlay.Render(img, regions, s.style)); err != nil {
		return nil, apperr.Internal(apperr.CodeInternal, "failed to encode overlay", err)
	}
	return buf.Bytes(), nil
}

// Subscribe streams the events of a session.
func (s *Service) Subscribe(id string) (<-chan Event, func(), error) {
	sess, err := s.manager.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.Subscribe()
	return ch, cancel, nil
}

// Close closes a session and releases its images.
func (s *Service) Close(id string) error {
	if !s.manager.Remove(id) {
		return apperr.NotFound(apperr.CodeSessionNotFound, fmt.Sprintf("Session %s not found", id))
	}
	return nil
}

// Shutdown waits for running header inference and closes all sessions.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.manager.CloseAll()
	if cerr := s.sink.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Service) do(ctx context.Context, id string, fn func(*workspace.Workspace) error) error {
	sess, err := s.manager.Get(id)
	if err != nil {
		return err
	}
	return sess.Do(ctx, fn)
}
