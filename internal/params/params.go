// Package params evaluates the parameter cell of a notebook.
//
// The cell is executed as Starlark, a dialect of Python, so declarations
// such as
//
//	## Parameters
//	x = [1, 5, 10, 20]
//	y = 'I love python'.split()
//	__save__ = ['result']
//
// evaluate the same way they would in the notebook kernel. Every top-level
// name the cell binds becomes a parameter axis, ordered by where it is first
// bound in the source.
package params

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/nbexplode/internal/pyrepr"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// SaveKey is the sentinel binding that names the variables to persist.
const SaveKey = "__save__"

// fileOptions relaxes the Starlark dialect toward Python: top-level control
// flow, while loops, sets and rebinding globals are all allowed.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Set is an ordered parameter declaration set.
type Set struct {
	names    []string
	axes     [][]starlark.Value
	save     []string
	saveRepr string
}

// EvalError reports a parameter cell that failed to parse or execute.
type EvalError struct {
	File  string
	Cause error
}

func (e *EvalError) Error() string {
	var evalErr *starlark.EvalError
	if errors.As(e.Cause, &evalErr) {
		return fmt.Sprintf("%s: failed to evaluate parameters: %s", e.File, evalErr.Backtrace())
	}
	return fmt.Sprintf("%s: failed to evaluate parameters: %v", e.File, e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// AxisError reports a parameter whose value cannot be iterated.
type AxisError struct {
	Name string
	Type string
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("parameter %q is not iterable (got %s)", e.Name, e.Type)
}

// Parse evaluates source and collects its bindings. filename is used in
// error messages and backtraces. print() calls inside the cell go to logger
// at info level; a nil logger discards them.
//
// Top-level statements run one at a time against shared globals so that
// parameters are ordered by when they are first bound at run time.
func Parse(filename, source string, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f, err := fileOptions.Parse(filename, source, 0)
	if err != nil {
		return nil, &EvalError{File: filename, Cause: err}
	}

	thread := &starlark.Thread{
		Name: "params:" + filename,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info(msg, "source", filename)
		},
	}

	predeclared := Predeclared()
	globals := make(starlark.StringDict, len(predeclared))
	for name, v := range predeclared {
		globals[name] = v
	}

	var order []string
	seen := make(map[string]bool)
	for _, stmt := range f.Stmts {
		chunk := &syntax.File{Path: f.Path, Stmts: []syntax.Stmt{stmt}, Options: f.Options}
		if err := starlark.ExecREPLChunk(chunk, thread, globals); err != nil {
			return nil, &EvalError{File: filename, Cause: err}
		}
		for _, name := range newBindings(stmt, globals, predeclared, seen) {
			seen[name] = true
			order = append(order, name)
		}
	}

	set := &Set{}
	for _, name := range order {
		value := globals[name]

		if name == SaveKey {
			if err := set.setSave(value); err != nil {
				return nil, err
			}
			continue
		}

		axis, err := axisValues(name, value)
		if err != nil {
			return nil, err
		}
		set.names = append(set.names, name)
		set.axes = append(set.axes, axis)
	}

	logger.Debug("parsed parameters", "source", filename, "names", set.names, "save", set.save)
	return set, nil
}

// Names returns the parameter names in declaration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Values returns the candidate values of the named parameter.
func (s *Set) Values(name string) []starlark.Value {
	for i, n := range s.names {
		if n == name {
			return append([]starlark.Value(nil), s.axes[i]...)
		}
	}
	return nil
}

// Save returns the names listed in __save__, or nil.
func (s *Set) Save() []string {
	return append([]string(nil), s.save...)
}

// SaveRepr returns the __save__ value as Python literal text, or "" when
// nothing is saved.
func (s *Set) SaveRepr() string {
	return s.saveRepr
}

// SavedParams renders the save-list as keyword associations, "a=a, b=b".
func (s *Set) SavedParams() string {
	parts := make([]string, len(s.save))
	for i, name := range s.save {
		parts[i] = name + "=" + name
	}
	return strings.Join(parts, ", ")
}

// setSave records the __save__ binding. Any iterable is accepted; the
// declared value is written back verbatim into generated cells.
func (s *Set) setSave(v starlark.Value) error {
	var names []string
	switch x := v.(type) {
	case starlark.String:
		for _, r := range string(x) {
			names = append(names, string(r))
		}
	default:
		iter := starlark.Iterate(v)
		if iter == nil {
			return fmt.Errorf("%s must be an iterable of variable names (got %s)", SaveKey, v.Type())
		}
		defer iter.Done()

		var elem starlark.Value
		for iter.Next(&elem) {
			names = append(names, saveName(elem))
		}
	}
	if len(names) == 0 {
		return nil
	}

	repr, err := pyrepr.Repr(v)
	if err != nil {
		repr = v.String()
	}
	s.save = names
	s.saveRepr = repr
	return nil
}

// saveName renders one __save__ entry the way str() would.
func saveName(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	if repr, err := pyrepr.Repr(v); err == nil {
		return repr
	}
	return v.String()
}

// axisValues materializes the candidate values of one parameter. Strings
// and bytes iterate element-wise as they do in Python.
func axisValues(name string, v starlark.Value) ([]starlark.Value, error) {
	switch x := v.(type) {
	case starlark.String:
		var values []starlark.Value
		for _, r := range string(x) {
			values = append(values, starlark.String(string(r)))
		}
		return values, nil
	case starlark.Bytes:
		values := make([]starlark.Value, len(x))
		for i := 0; i < len(x); i++ {
			values[i] = starlark.MakeInt(int(x[i]))
		}
		return values, nil
	}

	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, &AxisError{Name: name, Type: v.Type()}
	}
	defer iter.Done()

	var values []starlark.Value
	var elem starlark.Value
	for iter.Next(&elem) {
		values = append(values, elem)
	}
	return values, nil
}
