// Package explode expands a parameterized notebook into one notebook per
// combination of its parameter values.
//
// The first cell of the input must start with a "## Parameters" line. Its
// bindings are evaluated (see package params), the Cartesian product of their
// values is taken, and each combination is written to its own notebook with
// the first cell replaced by fixed assignments:
//
//	## Parameterized by sample.ipynb
//	x = 1
//	y = 'I'
//
// When the cell declares __save__, a saving cell is appended that stores the
// listed variables with numpy.savez, and the parameter cell gains a loader
// that halts re-execution once that archive exists.
package explode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/nbexplode/internal/notebook"
	"github.com/leapstack-labs/nbexplode/internal/params"
	"github.com/leapstack-labs/nbexplode/internal/pyrepr"
	"go.starlark.net/starlark"
)

// Marker is the line a parameter cell must start with (case-insensitive).
const Marker = "## Parameters"

// Config holds exploder configuration.
type Config struct {
	// Prefix is prepended to every generated file name.
	Prefix string
	// Quiet suppresses printing generated file names.
	Quiet bool
	// Stdout is accepted for compatibility; output always goes to files.
	Stdout bool
	// InPlace is accepted for compatibility; inputs are never overwritten.
	InPlace bool
	// Out receives generated file names, one per line (discarded if nil).
	Out io.Writer
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Exploder writes the expanded notebooks for parameterized inputs.
type Exploder struct {
	prefix string
	quiet  bool
	out    io.Writer
	logger *slog.Logger
}

// Result describes one explosion.
type Result struct {
	// Source is the input notebook path.
	Source string
	// Skipped is set when the first cell declares no parameters.
	Skipped bool
	// Files lists the notebooks written, in product order.
	Files []string
}

// New creates an exploder.
func New(cfg Config) *Exploder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	logger.Debug("initializing exploder", "prefix", cfg.Prefix, "quiet", cfg.Quiet,
		"stdout", cfg.Stdout, "inplace", cfg.InPlace)

	return &Exploder{
		prefix: cfg.Prefix,
		quiet:  cfg.Quiet,
		out:    out,
		logger: logger,
	}
}

// ExplodeFile reads the notebook at path and explodes it.
func (e *Exploder) ExplodeFile(ctx context.Context, path string) (*Result, error) {
	e.logger.Info("exploding " + path)

	nb, err := notebook.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("read notebook", "path", path, "nbformat", nb.Format())
	return e.Explode(ctx, path, nb)
}

// HasParameters reports whether src starts with the parameters marker.
func HasParameters(src string) bool {
	return len(src) >= len(Marker) && strings.EqualFold(src[:len(Marker)], Marker)
}

// OutputPath returns the file written for combination index of source:
// <dir>/<prefix><name without .ipynb><index, 4 digits>.ipynb. The prefix may
// name a subdirectory of dir.
func OutputPath(source, prefix string, index int) string {
	dir, file := filepath.Split(source)
	base := strings.TrimSuffix(file, ".ipynb")
	return filepath.Join(dir, fmt.Sprintf("%s%s%04d.ipynb", prefix, base, index))
}

// Explode writes one notebook per parameter combination of nb. source names
// the input; it appears in the generated header and determines where the
// outputs go. nb is not modified.
//
// Files are written as they are generated. An error part way through leaves
// the files already written in place.
func (e *Exploder) Explode(ctx context.Context, source string, nb *notebook.Notebook) (*Result, error) {
	result := &Result{Source: source}

	nb = nb.Clone()
	first, err := nb.FirstCell()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	if !HasParameters(first.Source()) {
		e.logger.Warn("no parameters found in this notebook", "source", source)
		result.Skipped = true
		return result, nil
	}

	if typ := first.Type(); typ != "code" {
		e.logger.Warn("parameters cell is not a code cell", "source", source, "cell_type", typ)
	}

	set, err := params.Parse(source, first.Source(), e.logger)
	if err != nil {
		return nil, err
	}

	saved := set.Save()
	savedParams := set.SavedParams()
	saveRepr := set.SaveRepr()

	// One saving cell, appended once and rewritten for every combination.
	var last notebook.Cell
	if len(saved) > 0 {
		last = first.Clone()
		if err := nb.AppendCell(last); err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}

	names := set.Names()
	header := headerSource(source)

	err = set.Product(func(i int, combo []starlark.Value) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		assignments := make([]string, len(combo))
		for j, v := range combo {
			repr, err := pyrepr.Repr(v)
			if err != nil {
				return fmt.Errorf("%s: parameter %q: %w", source, names[j], err)
			}
			assignments[j] = names[j] + " = " + repr
		}
		e.logger.Info("p = ("+strings.Join(assignments, ", ")+")", "index", i)

		outfile := OutputPath(source, e.prefix, i)
		outname := filepath.Base(outfile)

		cell := header + strings.Join(assignments, "\n")
		if len(saved) > 0 {
			cell += loaderSource(outname, saveRepr)
			last.SetSource(footerSource(outname, savedParams))
		}
		first.SetSource(cell)

		// a prefix such as "out/" places outputs in a subdirectory
		if err := os.MkdirAll(filepath.Dir(outfile), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", outfile, err)
		}
		if err := nb.WriteFile(outfile); err != nil {
			return fmt.Errorf("failed to write %s: %w", outfile, err)
		}
		e.logger.Info("writing file...", "file", outfile)
		result.Files = append(result.Files, outfile)

		if !e.quiet {
			_, _ = fmt.Fprintln(e.out, outfile)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	return result, nil
}
