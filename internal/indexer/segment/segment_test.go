package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/indexer/index"
)

func writeTestSegment(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	entries := []index.TermEntry{
		{Field: "body", Term: "fox", Postings: index.PostingList{{DocID: 2, Frequency: 1, Positions: []int{3}}}},
		{Field: "title", Term: "go", Postings: index.PostingList{
			{DocID: 1, Frequency: 2, Positions: []int{0, 4}},
			{DocID: 2, Frequency: 1, Positions: []int{1}},
		}},
		{Field: "title", Term: "rust", Postings: index.PostingList{{DocID: 1, Frequency: 1, Positions: []int{2}}}},
	}
	docs := []index.StoredDoc{
		{DocID: 1, Fields: map[string]string{"category": "a"}},
		{DocID: 2, Fields: map[string]string{"category": ""}},
	}
	name, err := NewWriter(dir).Write(entries, docs)
	require.NoError(t, err)
	return dir, name
}

func TestWriteAndRead(t *testing.T) {
	dir, name := writeTestSegment(t)

	r, err := OpenReader(filepath.Join(dir, name))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.Terms())
	assert.Equal(t, 2, r.DocCount())
	assert.Equal(t, []uint64{1, 2}, r.DocIDs())
	assert.Equal(t, uint64(2), r.MaxDocID())

	postings, err := r.Search("title", "go")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, []int{0, 4}, postings[0].Positions)

	postings, err = r.Search("title", "fox")
	require.NoError(t, err)
	assert.Nil(t, postings)

	pl, err := r.PostingList("body", "fox")
	require.NoError(t, err)
	id, ok := pl.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)

	pl, err = r.PostingList("body", "nothing")
	require.NoError(t, err)
	assert.Nil(t, pl)

	lex, err := r.Lexicon("title")
	require.NoError(t, err)
	lex.Seek("r")
	term, ok := lex.Term()
	assert.True(t, ok)
	assert.Equal(t, "rust", term)

	fields, err := r.Fetch(1)
	require.NoError(t, err)
	assert.Equal(t, "a", fields["category"])
}

func TestWrite_Empty(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(nil, nil)
	assert.Error(t, err)
}

func TestOpenReader_Corrupt(t *testing.T) {
	dir, name := writeTestSegment(t)
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	bad := filepath.Join(dir, "bad.spdx")
	require.NoError(t, os.WriteFile(bad, data, 0o644))

	_, err = OpenReader(bad)
	assert.ErrorContains(t, err, "bad magic")

	_, err = OpenReader(filepath.Join(dir, "missing.spdx"))
	assert.Error(t, err)
}
