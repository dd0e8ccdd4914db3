package headers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedShape is returned when a response is neither keyed by cell
// id nor a list of entries.
var ErrUnrecognizedShape = errors.New("unrecognized header response shape")

// Shape tells which of the accepted response layouts was received.
type Shape int

const (
	// ShapeKeyed is an object keyed by cell id.
	ShapeKeyed Shape = iota + 1
	// ShapeEntries is an array of {cellId, headers} entries.
	ShapeEntries
)

func (s Shape) String() string {
	switch s {
	case ShapeKeyed:
		return "keyed"
	case ShapeEntries:
		return "entries"
	default:
		return "unknown"
	}
}

// Entry is one element of the entries shape.
type Entry struct {
	CellID  string  `json:"cellId"`
	Headers Headers `json:"headers"`
}

// Result is a parsed response. Exactly one of Keyed and Entries is set,
// according to Shape.
type Result struct {
	Shape   Shape
	Keyed   map[string]Headers
	Entries []Entry
}

// Len returns the number of cells in the result.
func (r Result) Len() int {
	if r.Shape == ShapeKeyed {
		return len(r.Keyed)
	}
	return len(r.Entries)
}

// Normalize flattens the result into a map from cell id to headers. Header
// texts are trimmed and NFC-normalized; later entries win.
func (r Result) Normalize() map[string]Headers {
	out := make(map[string]Headers, r.Len())
	put := func(id string, h Headers) {
		if id == "" {
			return
		}
		out[id] = Headers{Row: NormalizeText(h.Row), Col: NormalizeText(h.Col)}
	}
	switch r.Shape {
	case ShapeKeyed:
		for id, h := range r.Keyed {
			put(id, h)
		}
	case ShapeEntries:
		for _, e := range r.Entries {
			put(e.CellID, e.Headers)
		}
	}
	return out
}

// Parse decodes a raw response body. Accepted are an object keyed by cell id,
// an array of entries, or an object whose single member is such an array.
// Markdown code fences around the JSON are ignored.
func Parse(raw []byte) (Result, error) {
	data := stripFences(bytes.TrimSpace(raw))
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: empty body", ErrUnrecognizedShape)
	}

	switch data[0] {
	case '[':
		return parseEntries(data)
	case '{':
		return parseObject(data)
	default:
		return Result{}, fmt.Errorf("%w: expected object or array", ErrUnrecognizedShape)
	}
}

func parseEntries(data []byte) (Result, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return Result{}, wrapShape(err)
	}
	for i, e := range entries {
		if e.CellID == "" {
			return Result{}, fmt.Errorf("%w: entry %d has no cellId", ErrUnrecognizedShape, i)
		}
	}
	return Result{Shape: ShapeEntries, Entries: entries}, nil
}

func parseObject(data []byte) (Result, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return Result{}, wrapShape(err)
	}

	if len(members) == 1 {
		for _, v := range members {
			if v = bytes.TrimSpace(v); len(v) > 0 && v[0] == '[' {
				return parseEntries(v)
			}
		}
	}

	keyed := make(map[string]Headers, len(members))
	for id, v := range members {
		var h Headers
		if err := json.Unmarshal(v, &h); err != nil {
			return Result{}, fmt.Errorf("cell %s: %w", id, wrapShape(err))
		}
		keyed[id] = h
	}
	return Result{Shape: ShapeKeyed, Keyed: keyed}, nil
}

func wrapShape(err error) error {
	if errors.Is(err, ErrUnrecognizedShape) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
}

func stripFences(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("```")) {
		return data
	}
	data = data[3:]
	if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
		data = data[nl+1:]
	}
	data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte("```"))
	return bytes.TrimSpace(data)
}
