package session

import (
	"context"
	"log/slog"

	"github.com/MeKo-Tech/cellgrid/internal/headers"
	"github.com/MeKo-Tech/cellgrid/internal/workspace"
)

// headerJob is the input of one header inference run, captured on the loop.
type headerJob struct {
	generation uint64
	document   string
	request    headers.Request
}

// headersResolved is the outcome of a header inference run.
type headersResolved struct {
	generation uint64
	document   string
	headers    map[string]headers.Headers
	err        error
}

func (s *Service) newHeaderJob(w *workspace.Workspace, gen uint64, d *workspace.Document) headerJob {
	if s.inferrer == nil {
		return headerJob{}
	}
	cells := w.HeaderCells(d.ID)
	req := headers.Request{Image: d.Image, MIME: d.MIME, Cells: make([]headers.Cell, len(cells))}
	for i, c := range cells {
		req.Cells[i] = headers.Cell{CellID: c.CellID, Text: c.Text}
	}
	return headerJob{generation: gen, document: d.ID, request: req}
}

// inferHeaders runs the job in the background and posts its result back to
// the session loop.
func (s *Service) inferHeaders(sess *Session, job headerJob) {
	if s.inferrer == nil || len(job.request.Cells) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.headerTimeout)
		defer cancel()

		ev := headersResolved{generation: job.generation, document: job.document}
		res, err := s.inferrer.Infer(ctx, job.request)
		if err != nil {
			ev.err = err
		} else {
			ev.headers = res.Normalize()
		}
		sess.post(func(w *workspace.Workspace) { s.applyHeaders(sess, w, ev) })
	}()
}

// applyHeaders runs on the session loop.
func (s *Service) applyHeaders(sess *Session, w *workspace.Workspace, ev headersResolved) {
	if ev.generation != w.Generation() {
		headerInferenceTotal.WithLabelValues("stale").Inc()
		slog.Debug("Discarding stale header inference", "session", sess.ID(), "generation", ev.generation, "current", w.Generation())
		return
	}

	if ev.err != nil {
		headerInferenceTotal.WithLabelValues("failed").Inc()
		slog.Warn("Header inference failed", "session", sess.ID(), "document", ev.document, "error", ev.err)
		sess.publish(Event{
			Type:       EventHeadersFailed,
			Generation: ev.generation,
			Document:   ev.document,
			Message:    ev.err.Error(),
		})
		return
	}

	byCell := make(map[string]workspace.AIContext, len(ev.headers))
	for id, h := range ev.headers {
		byCell[id] = workspace.AIContext{RowHeader: h.Row, ColHeader: h.Col}
	}
	if !w.ApplyHeaders(ev.generation, ev.document, byCell) {
		headerInferenceTotal.WithLabelValues("stale").Inc()
		return
	}
	headerInferenceTotal.WithLabelValues("applied").Inc()
	sess.publish(Event{
		Type:       EventHeadersResolved,
		Generation: ev.generation,
		Document:   ev.document,
		Count:      len(byCell),
	})
}
