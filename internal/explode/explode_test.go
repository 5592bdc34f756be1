package explode

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/leapstack-labs/nbexplode/internal/notebook"
	"github.com/leapstack-labs/nbexplode/internal/params"
	"github.com/leapstack-labs/nbexplode/internal/pyrepr"
	"github.com/leapstack-labs/nbexplode/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// notebookFiles lists the .ipynb files in dir other than the input.
func notebookFiles(t *testing.T, dir, input string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".ipynb") && e.Name() != filepath.Base(input) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files
}

func readCells(t *testing.T, path string) []notebook.Cell {
	t.Helper()
	nb, err := notebook.ReadFile(path)
	require.NoError(t, err)
	cells, err := nb.Cells()
	require.NoError(t, err)
	return cells
}

func newTestExploder(t *testing.T, out *bytes.Buffer, prefix string, quiet bool) *Exploder {
	t.Helper()
	cfg := Config{
		Prefix: prefix,
		Quiet:  quiet,
		Logger: testutil.NewTestLogger(t),
	}
	if out != nil {
		cfg.Out = out
	}
	return New(cfg)
}

func TestExplodeExample(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "sample.ipynb", "## Parameters\nx = [1, 2]\ny = ['a','b']")

	var out bytes.Buffer
	result, err := newTestExploder(t, &out, "", false).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	wantFiles := []string{"sample0000.ipynb", "sample0001.ipynb", "sample0002.ipynb", "sample0003.ipynb"}
	assert.Equal(t, wantFiles, notebookFiles(t, dir, input))

	wantBodies := []string{
		"x = 1\ny = 'a'",
		"x = 1\ny = 'b'",
		"x = 2\ny = 'a'",
		"x = 2\ny = 'b'",
	}
	for i, name := range wantFiles {
		path := filepath.Join(dir, name)
		assert.Equal(t, path, result.Files[i])

		cells := readCells(t, path)
		require.Len(t, cells, 2, "no saving cell without __save__")
		assert.Equal(t, "## Parameterized by "+input+"\n"+wantBodies[i], cells[0].Source())
		assert.NotContains(t, cells[0].Source(), "saved_npz")
		assert.Equal(t, "analysis goes here", cells[1].Source())
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, result.Files, lines)
}

func TestExplodeCardinalityAndOrder(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "grid.ipynb",
		"## Parameters\nx = [10, 20, 30]\ny = range(4)\n")

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Files, 12)

	i := 0
	for _, x := range []string{"10", "20", "30"} {
		for _, y := range []string{"0", "1", "2", "3"} {
			cells := readCells(t, result.Files[i])
			lines := strings.Split(cells[0].Source(), "\n")
			require.Len(t, lines, 3)
			assert.Equal(t, "x = "+x, lines[1], "file %d", i)
			assert.Equal(t, "y = "+y, lines[2], "file %d", i)
			i++
		}
	}
}

func TestExplodeAssignmentsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "vals.ipynb",
		"## Parameters\nv = [1.5, 'it\\'s', (1, 'a'), {'k': [None, True]}, -3]\n")

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Files, 5)

	set, err := params.Parse("cell", "v = [1.5, 'it\\'s', (1, 'a'), {'k': [None, True]}, -3]\n", nil)
	require.NoError(t, err)

	for i, want := range set.Values("v") {
		cells := readCells(t, result.Files[i])
		line := strings.Split(cells[0].Source(), "\n")[1]

		// Re-parse the assignment and compare with the declared value.
		again, err := params.Parse("line", strings.Replace(line, "v = ", "v = [", 1)+"]\n", nil)
		require.NoError(t, err, "line %q", line)
		got := again.Values("v")
		require.Len(t, got, 1)

		wantRepr, err := pyrepr.Repr(want)
		require.NoError(t, err)
		gotRepr, err := pyrepr.Repr(got[0])
		require.NoError(t, err)
		assert.Equal(t, wantRepr, gotRepr)
	}
}

func TestExplodeSaveList(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "nb.ipynb",
		"## Parameters\nx = [1, 2]\n__save__ = ['a', 'b']\n")

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Files, 2)

	for i, path := range result.Files {
		name := filepath.Base(path)
		cells := readCells(t, path)
		require.Len(t, cells, 3, "saving cell appended exactly once")

		first := cells[0].Source()
		assert.True(t, strings.HasPrefix(first, "## Parameterized by "+input+"\nx = "), first)
		assert.Contains(t, first, "saved_npz = '"+name+".npz';")
		assert.Contains(t, first, `strftime("%Y-%d-%m @ %H:%M:%S")`)
		assert.Contains(t, first, `raise AlreadyRan("it appears this notebook already ran on %s, halting" %t)`)
		assert.True(t, strings.HasSuffix(first, "__save__ = ['a', 'b']\n"), first)
		assert.NotContains(t, first, "__save__ = [1")

		assert.Equal(t, "## autogenerated saving cell\nnp.savez('"+name+"', a=a, b=b)\n", cells[2].Source(), "file %d", i)
		assert.Equal(t, "analysis goes here", cells[1].Source())
	}
}

func TestExplodeLoaderText(t *testing.T) {
	got := loaderSource("nb0000.ipynb", "['a']")
	want := `
# What follows is a code snippet to load the __saved__ variables on
# re-execution, of this notebook.  This code only raises exception if the last
# cell in this notebook ran, and the desired variables were saved
try:
    saved_npz = 'nb0000.ipynb.npz';
    import numpy as np; _loaded = np.load(saved_npz);
    locals().update(_loaded); import datetime; import os.path;
    tstamp = os.path.getmtime(saved_npz) ;
    t = datetime.datetime.fromtimestamp(tstamp).strftime("%Y-%d-%m @ %H:%M:%S")
    class AlreadyRan(Exception): pass
    raise AlreadyRan("it appears this notebook already ran on %s, halting" %t)
except IOError:
    pass
__save__ = ['a']
`
	assert.Equal(t, want, got)
}

func TestExplodeMissingParameters(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "plain.ipynb", "x = [1, 2]\n")

	logger, logs := testutil.NewCaptureLogger(slog.LevelWarn)
	var out bytes.Buffer
	ex := New(Config{Out: &out, Logger: logger})

	result, err := ex.ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.Files)
	assert.Empty(t, notebookFiles(t, dir, input))
	assert.Empty(t, out.String())
	assert.Contains(t, logs.String(), "no parameters found in this notebook")
}

func TestExplodeMarkerCaseInsensitive(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"## Parameters\nx = [1]", true},
		{"## PARAMETERS\nx = [1]", true},
		{"## parameters", true},
		{"## Parameter\n", false},
		{" ## Parameters\n", false},
		{"# Parameters\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, HasParameters(tt.src))
		})
	}
}

func TestExplodePrefixAndQuiet(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "run.ipynb", "## parameters\nseed = [7]\n")

	var out bytes.Buffer
	result, err := newTestExploder(t, &out, "sweep_", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "sweep_run0000.ipynb")}, result.Files)
	assert.Empty(t, out.String(), "quiet suppresses file names")
}

func TestExplodePrefixSubdirectory(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "run.ipynb", "## Parameters\nseed = [7, 8]\n__save__ = ['seed']\n")

	var out bytes.Buffer
	result, err := newTestExploder(t, &out, "sub/", false).ExplodeFile(context.Background(), input)
	require.NoError(t, err)

	want := []string{filepath.Join(dir, "sub", "run0000.ipynb"), filepath.Join(dir, "sub", "run0001.ipynb")}
	assert.Equal(t, want, result.Files)
	assert.Equal(t, want[0]+"\n"+want[1]+"\n", out.String())

	cells := readCells(t, want[1])
	assert.Contains(t, cells[0].Source(), "saved_npz = 'run0001.ipynb.npz';")
	assert.Equal(t, "## autogenerated saving cell\nnp.savez('run0001.ipynb', seed=seed)\n", cells[2].Source())
}

func TestExplodeSaveTuple(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "tup.ipynb", "## Parameters\nx = [1]\n__save__ = ('a', 'b')\n")

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	cells := readCells(t, result.Files[0])
	require.Len(t, cells, 3)
	assert.True(t, strings.HasSuffix(cells[0].Source(), "__save__ = ('a', 'b')\n"), cells[0].Source())
	assert.Equal(t, "## autogenerated saving cell\nnp.savez('tup0000.ipynb', a=a, b=b)\n", cells[2].Source())
}

func TestExplodeIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "idem.ipynb",
		"## Parameters\nx = [1, 2]\ny = linspace(0, 1, 3)\n__save__ = ['x']\n")

	ex := newTestExploder(t, nil, "", true)
	first, err := ex.ExplodeFile(context.Background(), input)
	require.NoError(t, err)

	snapshot := make(map[string][]byte)
	for _, f := range first.Files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		snapshot[f] = data
	}

	second, err := ex.ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first.Files, second.Files)

	for _, f := range second.Files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Equal(t, string(snapshot[f]), string(data), f)
	}
}

func TestExplodeDoesNotModifyInput(t *testing.T) {
	dir := t.TempDir()
	src := "## Parameters\nx = [1, 2]\n__save__ = ['x']\n"
	input := testutil.WriteNotebook(t, dir, "keep.ipynb", src)

	nb, err := notebook.ReadFile(input)
	require.NoError(t, err)

	_, err = newTestExploder(t, nil, "", true).Explode(context.Background(), input, nb)
	require.NoError(t, err)

	cells, err := nb.Cells()
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, src, cells[0].Source())
}

func TestExplodeEvalError(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "bad.ipynb", "## Parameters\nx = [1, 2\n")

	_, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.Error(t, err)

	var evalErr *params.EvalError
	assert.True(t, errors.As(err, &evalErr))
	assert.Empty(t, notebookFiles(t, dir, input))
}

func TestExplodePartialFailureKeepsWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "partial.ipynb", "## Parameters\nf = [1, len, 3]\n")

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, pyrepr.ErrNotLiteral)
	assert.Contains(t, err.Error(), `"f"`)

	require.NotNil(t, result)
	assert.Equal(t, []string{filepath.Join(dir, "partial0000.ipynb")}, result.Files)
	assert.Equal(t, []string{"partial0000.ipynb"}, notebookFiles(t, dir, input))
}

func TestExplodeCancelled(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteNotebook(t, dir, "cancel.ipynb", "## Parameters\nx = [1, 2]\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExploder(t, nil, "", true).ExplodeFile(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, notebookFiles(t, dir, input))
}

func TestExplodeNBFormat4(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "v4.ipynb")
	doc := `{"cells": [{"cell_type": "code", "execution_count": null, "metadata": {}, "outputs": [],
 "source": ["## Parameters\n", "n = [3, 4]\n", "__save__ = ['n']\n"]}],
 "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`
	require.NoError(t, os.WriteFile(input, []byte(doc), 0o644))

	result, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Files, 2)

	cells := readCells(t, result.Files[1])
	require.Len(t, cells, 2)
	assert.True(t, strings.HasPrefix(cells[0].Source(), "## Parameterized by "+input+"\nn = 4\n"))
	assert.Equal(t, "## autogenerated saving cell\nnp.savez('v40001.ipynb', n=n)\n", cells[1].Source())
}

func TestExplodeMarkdownParametersCell(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "md.ipynb")
	doc := `{"cells": [{"cell_type": "markdown", "metadata": {}, "source": "## Parameters\nn = [1]\n"}],
 "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`
	require.NoError(t, os.WriteFile(input, []byte(doc), 0o644))

	logger, logs := testutil.NewCaptureLogger(slog.LevelDebug)
	result, err := New(Config{Quiet: true, Logger: logger}).ExplodeFile(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, result.Files, 1)
	assert.Contains(t, logs.String(), "parameters cell is not a code cell")
	assert.Contains(t, logs.String(), "cell_type=markdown")
	assert.Contains(t, logs.String(), "nbformat=4")
}

func TestExplodeNoCells(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.ipynb")
	require.NoError(t, os.WriteFile(input, []byte(`{"worksheets": [{"cells": []}]}`), 0o644))

	_, err := newTestExploder(t, nil, "", true).ExplodeFile(context.Background(), input)
	assert.ErrorIs(t, err, notebook.ErrNoCells)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		source string
		prefix string
		index  int
		want   string
	}{
		{"sample.ipynb", "", 0, "sample0000.ipynb"},
		{"sample.ipynb", "p_", 12, "p_sample0012.ipynb"},
		{filepath.Join("dir", "nb.ipynb"), "", 3, filepath.Join("dir", "nb0003.ipynb")},
		{"noext", "", 10000, "noext10000.ipynb"},
		{filepath.Join("dir", "nb.ipynb"), "sub/", 1, filepath.Join("dir", "sub", "nb0001.ipynb")},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputPath(tt.source, tt.prefix, tt.index))
		})
	}
}
