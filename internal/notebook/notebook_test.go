package notebook

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v3Doc = `{
 "metadata": {"name": "sample"},
 "nbformat": 3,
 "nbformat_minor": 0,
 "worksheets": [
  {
   "cells": [
    {
     "cell_type": "code",
     "collapsed": false,
     "input": ["## Parameters\n", "x = [1, 2]"],
     "language": "python",
     "metadata": {},
     "outputs": [],
     "prompt_number": 1
    },
    {
     "cell_type": "markdown",
     "metadata": {},
     "source": "some <b>notes</b>"
    }
   ],
   "metadata": {}
  }
 ]
}`

const v4Doc = `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": "## Parameters\ny = 'a'"
  }
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`

func TestReadV3(t *testing.T) {
	nb, err := Read(strings.NewReader(v3Doc))
	require.NoError(t, err)

	assert.Equal(t, 3, nb.Format())

	cells, err := nb.Cells()
	require.NoError(t, err)
	require.Len(t, cells, 2)

	assert.Equal(t, "## Parameters\nx = [1, 2]", cells[0].Source())
	assert.Equal(t, "code", cells[0].Type())
	assert.Equal(t, "some <b>notes</b>", cells[1].Source())
}

func TestReadV4(t *testing.T) {
	nb, err := Read(strings.NewReader(v4Doc))
	require.NoError(t, err)

	assert.Equal(t, 4, nb.Format())

	first, err := nb.FirstCell()
	require.NoError(t, err)
	assert.Equal(t, "## Parameters\ny = 'a'", first.Source())
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "nope"},
		{name: "array", input: "[]"},
		{name: "null", input: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestNoCells(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty object", input: `{}`},
		{name: "no worksheets", input: `{"worksheets": []}`},
		{name: "worksheet without cells", input: `{"worksheets": [{}]}`},
		{name: "empty cell list", input: `{"cells": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nb, err := Read(strings.NewReader(tt.input))
			require.NoError(t, err)

			_, err = nb.FirstCell()
			assert.ErrorIs(t, err, ErrNoCells)
		})
	}
}

func TestSetSourceSplitsLines(t *testing.T) {
	nb, err := Read(strings.NewReader(v3Doc))
	require.NoError(t, err)

	first, err := nb.FirstCell()
	require.NoError(t, err)

	first.SetSource("a = 1\nb = 2\n")
	assert.Equal(t, []any{"a = 1\n", "b = 2\n"}, first.m["input"])
	assert.Equal(t, "a = 1\nb = 2\n", first.Source())

	first.SetSource("")
	assert.Equal(t, []any{}, first.m["input"])
}

func TestCloneIsDeep(t *testing.T) {
	nb, err := Read(strings.NewReader(v3Doc))
	require.NoError(t, err)

	clone := nb.Clone()
	cloneFirst, err := clone.FirstCell()
	require.NoError(t, err)
	cloneFirst.SetSource("changed")

	first, err := nb.FirstCell()
	require.NoError(t, err)
	assert.Equal(t, "## Parameters\nx = [1, 2]", first.Source())
}

func TestAppendCellAliases(t *testing.T) {
	nb, err := Read(strings.NewReader(v4Doc))
	require.NoError(t, err)

	first, err := nb.FirstCell()
	require.NoError(t, err)

	extra := first.Clone()
	require.NoError(t, nb.AppendCell(extra))
	extra.SetSource("tail")

	cells, err := nb.Cells()
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "tail", cells[1].Source())
	assert.Equal(t, "## Parameters\ny = 'a'", cells[0].Source())
}

func TestEncodeDeterministic(t *testing.T) {
	nb, err := Read(strings.NewReader(v3Doc))
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, nb.Encode(&a))
	require.NoError(t, nb.Clone().Encode(&b))
	assert.Equal(t, a.String(), b.String())

	out := a.String()
	assert.True(t, strings.HasPrefix(out, "{\n \"metadata\""), "keys should be sorted with one-space indent: %s", out)
	assert.Contains(t, out, `"prompt_number": 1`)
	assert.Contains(t, out, "some <b>notes</b>")
}

func TestWriteFileRoundTrip(t *testing.T) {
	nb, err := Read(strings.NewReader(v4Doc))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.ipynb")
	require.NoError(t, nb.WriteFile(path))

	again, err := ReadFile(path)
	require.NoError(t, err)
	first, err := again.FirstCell()
	require.NoError(t, err)
	assert.Equal(t, "## Parameters\ny = 'a'", first.Source())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"execution_count": null`)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.ipynb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
