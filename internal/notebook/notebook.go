// Package notebook reads and writes IPython/Jupyter notebook documents.
//
// Documents are kept as the generic JSON tree they were decoded from, so
// fields this package does not know about survive a round trip untouched.
// Both the worksheet layout of nbformat 3 and the flat cell list of
// nbformat 4 are supported.
package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoCells is returned when a document has no cell list to work on.
var ErrNoCells = errors.New("notebook has no cells")

// Notebook is a decoded notebook document.
type Notebook struct {
	doc map[string]any
}

// Cell is a single notebook cell. It aliases the document it came from:
// SetSource on a cell obtained from Cells mutates that document.
type Cell struct {
	m map[string]any
}

// Read decodes a notebook from r.
func Read(r io.Reader) (*Notebook, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode notebook: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("failed to decode notebook: document is not an object")
	}
	return &Notebook{doc: doc}, nil
}

// ReadFile decodes the notebook stored at path.
func ReadFile(path string) (*Notebook, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied input notebook
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	nb, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nb, nil
}

// Format returns the major nbformat version, or 0 if the document does not say.
func (nb *Notebook) Format() int {
	n, ok := nb.doc["nbformat"].(json.Number)
	if !ok {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return int(v)
}

// hasWorksheets reports whether the document uses the nbformat 3 layout.
func (nb *Notebook) hasWorksheets() bool {
	_, ok := nb.doc["worksheets"]
	return ok
}

// container returns the JSON object that owns the cell list: the first
// worksheet for nbformat 3, the document itself otherwise.
func (nb *Notebook) container() (map[string]any, error) {
	if !nb.hasWorksheets() {
		if _, ok := nb.doc["cells"].([]any); !ok {
			return nil, ErrNoCells
		}
		return nb.doc, nil
	}

	worksheets, ok := nb.doc["worksheets"].([]any)
	if !ok || len(worksheets) == 0 {
		return nil, ErrNoCells
	}
	ws, ok := worksheets[0].(map[string]any)
	if !ok {
		return nil, ErrNoCells
	}
	if _, ok := ws["cells"].([]any); !ok {
		return nil, ErrNoCells
	}
	return ws, nil
}

// Cells returns the cells of the first worksheet (or of the document for
// nbformat 4). Non-object entries are skipped.
func (nb *Notebook) Cells() ([]Cell, error) {
	c, err := nb.container()
	if err != nil {
		return nil, err
	}
	raw := c["cells"].([]any)

	cells := make([]Cell, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			cells = append(cells, Cell{m: m})
		}
	}
	return cells, nil
}

// FirstCell returns the first cell, which holds the parameter declarations.
func (nb *Notebook) FirstCell() (Cell, error) {
	cells, err := nb.Cells()
	if err != nil {
		return Cell{}, err
	}
	if len(cells) == 0 {
		return Cell{}, ErrNoCells
	}
	return cells[0], nil
}

// AppendCell adds cell to the end of the cell list. The cell is stored by
// reference; later SetSource calls on it show up in the document.
func (nb *Notebook) AppendCell(cell Cell) error {
	c, err := nb.container()
	if err != nil {
		return err
	}
	c["cells"] = append(c["cells"].([]any), cell.m)
	return nil
}

// Clone returns a deep copy of the document.
func (nb *Notebook) Clone() *Notebook {
	return &Notebook{doc: deepCopy(nb.doc).(map[string]any)}
}

// Encode writes the document as indented JSON with sorted keys, the layout
// the IPython notebook writer produces.
func (nb *Notebook) Encode(w io.Writer) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(nb.doc); err != nil {
		return fmt.Errorf("failed to encode notebook: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile encodes the document to path, creating or truncating it.
func (nb *Notebook) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := nb.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644) //nolint:gosec // G306: notebooks are user documents
}

// sourceKey is the field holding the cell text: "input" for nbformat 3 code
// cells, "source" for everything else.
func (c Cell) sourceKey() string {
	if _, ok := c.m["input"]; ok {
		return "input"
	}
	if _, ok := c.m["source"]; ok {
		return "source"
	}
	if c.m["cell_type"] == "code" && c.m["language"] != nil {
		return "input"
	}
	return "source"
}

// Source returns the cell text, joining list-of-lines storage.
func (c Cell) Source() string {
	switch v := c.m[c.sourceKey()].(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, line := range v {
			if s, ok := line.(string); ok {
				sb.WriteString(s)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

// SetSource replaces the cell text. It is stored as a list of lines, each
// keeping its trailing newline.
func (c Cell) SetSource(src string) {
	c.m[c.sourceKey()] = splitLines(src)
}

// Clone returns a deep copy of the cell, detached from any document.
func (c Cell) Clone() Cell {
	return Cell{m: deepCopy(c.m).(map[string]any)}
}

// Type returns the cell_type field.
func (c Cell) Type() string {
	s, _ := c.m["cell_type"].(string)
	return s
}

func splitLines(s string) []any {
	lines := make([]any, 0, strings.Count(s, "\n")+1)
	for s != "" {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
	}
	return lines
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = deepCopy(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = deepCopy(val)
		}
		return s
	default:
		return v
	}
}
