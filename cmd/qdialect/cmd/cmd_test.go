package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func TestCompileCmd_JSON(t *testing.T) {
	out, err := run(t, "", "compile", `+title:fox -body:"lazy dog"`, "--format", "json")
	require.NoError(t, err)

	var got compileOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Leaves, 2)
	assert.Equal(t, "term", got.Leaves[0].Kind)
	assert.Equal(t, "title:fox", got.Leaves[0].Display)
	assert.Equal(t, "phrase", got.Leaves[1].Kind)
	assert.Equal(t, "body", got.Leaves[1].Field)
	assert.Equal(t, []string{"lazy", "dog"}, got.Leaves[1].Terms)
}

func TestCompileCmd_StemmedDisplayKeepsSource(t *testing.T) {
	out, err := run(t, "", "compile", "body:generations", "--format", "json")
	require.NoError(t, err)

	var got compileOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "body:generations", got.Compiled)
	require.Len(t, got.Leaves, 1)
	assert.Equal(t, []string{"generation"}, got.Leaves[0].Terms)
}

func TestCompileCmd_Errors(t *testing.T) {
	_, err := run(t, "", "compile", "colour:red")
	assert.True(t, apperrors.IsField(err))

	_, err = run(t, "", "compile", "(title:fox")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = run(t, "", "compile")
	assert.Error(t, err)
}

func TestCompileCmd_EmptyAfterAnalysis(t *testing.T) {
	out, err := run(t, "", "compile", "title:the")
	require.NoError(t, err)
	assert.Contains(t, out, "empty")
}

const docs = `{"title":"quick brown fox","body":"jumps over"}
{"title":"lazy dog","body":"sleeps"}

{"title":"fox news","body":"reports"}
`

func hitIDs(t *testing.T, out string) []uint64 {
	t.Helper()
	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	ids := make([]uint64, 0, len(got.Hits))
	for _, h := range got.Hits {
		ids = append(ids, h.DocID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestIndexAndSearch(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, docs, "index", "-", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 3 documents")

	for _, engine := range []string{"native", "bleve"} {
		t.Run(engine, func(t *testing.T) {
			out, err := run(t, "", "search", "title:fox", "--data-dir", dir, "--engine", engine, "--format", "json")
			require.NoError(t, err)
			assert.Equal(t, []uint64{1, 3}, hitIDs(t, out))

			out, err = run(t, "", "search", "+title:fox -body:reports", "--data-dir", dir, "--engine", engine, "--format", "json")
			require.NoError(t, err)
			assert.Equal(t, []uint64{1}, hitIDs(t, out))
		})
	}

	out, err = run(t, "", "search", "title:dog", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 hits for title:dog")
	assert.Contains(t, out, `title="lazy dog"`)

	_, err = run(t, "", "search", "title:dog", "--data-dir", dir, "--engine", "lucene")
	assert.Error(t, err)
}

func TestIndexCmd_FromFileContinuesIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(docs), 0o644))

	_, err := run(t, "", "index", path, "--data-dir", dir)
	require.NoError(t, err)
	_, err = run(t, "", "index", path, "--data-dir", dir)
	require.NoError(t, err)

	out, err := run(t, "", "search", "title:fox", "--data-dir", dir, "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 4, 6}, hitIDs(t, out))
}

func TestIndexCmd_BadInput(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "{not json}\n", "index", "-", "--data-dir", dir)
	assert.ErrorContains(t, err, "line 1")

	_, err = run(t, `{"colour":"red"}`+"\n", "index", "-", "--data-dir", dir)
	assert.True(t, apperrors.IsField(err))
}
