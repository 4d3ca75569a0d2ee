package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/errors"
)

func TestSimple_Tokenize(t *testing.T) {
	a := NewSimple(SimpleOptions{Stem: true, StopWords: true})

	tokens := a.Tokenize("The Running of the Dogs")

	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "runn", Position: 0}, tokens[0])
	assert.Equal(t, Token{Term: "dog", Position: 1}, tokens[1])
}

func TestSimple_StopWordsOnly(t *testing.T) {
	a := NewSimple(SimpleOptions{StopWords: true})
	assert.Empty(t, a.Tokenize("the and of"))
}

func TestSimple_StemmerPresence(t *testing.T) {
	assert.Nil(t, NewSimple(SimpleOptions{}).Stemmer())

	st := NewSimple(SimpleOptions{Stem: true}).Stemmer()
	require.NotNil(t, st)
	assert.Equal(t, "fly", st.Stem("flies"))
	assert.Equal(t, "at", st.Stem("at"))
}

func TestKeyword(t *testing.T) {
	assert.Equal(t, []string{"Big Apple"}, Terms(Keyword{}, "Big Apple"))
	assert.Empty(t, Keyword{}.Tokenize(""))
	assert.Nil(t, Keyword{}.Stemmer())
}

func TestBleveEnglish(t *testing.T) {
	a := NewBleveEnglish()

	assert.Equal(t, []string{"connect", "network"}, Terms(a, "Connected Networks"))

	tokens := a.Tokenize("alpha beta")
	require.Len(t, tokens, 2)
	assert.Equal(t, 0, tokens[0].Position)
	assert.Equal(t, 1, tokens[1].Position)

	st := a.Stemmer()
	require.NotNil(t, st)
	assert.Equal(t, "connect", st.Stem("connecting"))
}

func TestBleveNamed(t *testing.T) {
	std, err := BleveNamed("standard")
	require.NoError(t, err)
	assert.Nil(t, std.Stemmer())
	assert.Equal(t, []string{"quick", "fox"}, Terms(std, "The quick fox"))

	_, err = BleveNamed("no-such-analyzer")
	assert.True(t, apperrors.IsConfig(err))
}

func TestBleve_PositionsSkipNoGaps(t *testing.T) {
	en, err := BleveNamed("en")
	require.NoError(t, err)

	tokens := en.Tokenize("the state of the art")
	require.Len(t, tokens, 2)
	assert.Equal(t, Token{Term: "state", Position: 0}, tokens[0])
	assert.Equal(t, Token{Term: "art", Position: 1}, tokens[1])
}

func TestFoldsCase(t *testing.T) {
	assert.False(t, FoldsCase(nil))
	assert.False(t, FoldsCase(Keyword{}))
	assert.True(t, FoldsCase(NewSimple(SimpleOptions{})))
	assert.True(t, FoldsCase(NewBleveEnglish()))

	kw, err := BleveNamed("keyword")
	require.NoError(t, err)
	assert.False(t, FoldsCase(kw))
}

func TestNamed(t *testing.T) {
	for _, name := range []string{"simple", "simple_nostem", "keyword", "porter", "bleve:standard"} {
		t.Run(name, func(t *testing.T) {
			a, err := Named(name)
			require.NoError(t, err)
			assert.NotNil(t, a)
		})
	}

	a, err := Named("")
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = Named("klingon")
	assert.True(t, apperrors.IsConfig(err))
}
