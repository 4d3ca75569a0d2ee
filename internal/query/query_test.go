package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_String(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"term", &Term{Field: "title", Term: "go"}, "title:go"},
		{"term needs quoting", &Term{Field: "title", Term: "a-b"}, `title:"a-b"`},
		{"keyword term", &Term{Field: "title", Term: "AND"}, `title:"AND"`},
		{"phrase", &Phrase{Field: "body", Terms: []string{"quick", "fox"}}, `body:"quick fox"`},
		{"proximity", &Proximity{Field: "body", Terms: []string{"quick", "fox"}, Within: 3}, `body:"quick fox"~3`},
		{"wildcard", &Wildcard{Field: "tag", Term: "te*"}, "tag:te*"},
		{"negated wildcard", &Wildcard{Field: "tag", Term: "te*", Negated: true}, "tag!:te*"},
		{"range", &Range{Field: "date", Lower: "20100301", Upper: "20100331"}, "date:[20100301 TO 20100331]"},
		{"negated range", &Range{Field: "date", Lower: "a", Upper: "b", Negated: true}, "date!:[a TO b]"},
		{"no field", &Term{Term: "go"}, "go"},
		{"term source", &Term{Field: "body", Term: "generation", Source: "generations"}, "body:generations"},
		{"phrase source", &Phrase{Field: "body", Terms: []string{"state", "art"}, Source: "state of the art"}, `body:"state of the art"`},
		{"proximity source", &Proximity{Field: "body", Terms: []string{"a", "b"}, Source: "A B", Within: 2}, `body:"A B"~2`},
		{"wildcard source", &Wildcard{Field: "title", Term: "generation*", Source: "Generations*"}, "title:Generations*"},
		{"double quote inside", &Term{Field: "tag", Term: `say "hi"`}, `tag:'say "hi"'`},
		{
			"and",
			&Boolean{Op: AND, Children: []Node{&Term{Field: "a", Term: "x"}, &Term{Field: "b", Term: "y"}}},
			"(+a:x +b:y)",
		},
		{
			"or",
			&Boolean{Op: OR, Children: []Node{&Term{Field: "a", Term: "x"}, &Term{Field: "b", Term: "y"}}},
			"(a:x b:y)",
		},
		{"not", Not(&Term{Field: "a", Term: "x"}), "(-a:x)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.node.String())
		})
	}
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"generation"}, Terms(&Term{Term: "generation", Source: "generations"}))
	assert.Equal(t, []string{"a", "b"}, Terms(&Proximity{Terms: []string{"a", "b"}}))
	assert.Equal(t, []string{"lo", "hi"}, Terms(&Range{Lower: "lo", Upper: "hi"}))
}

func TestJoin(t *testing.T) {
	x := &Term{Field: "f", Term: "x"}
	y := &Term{Field: "f", Term: "y"}

	assert.Nil(t, Join(AND))
	assert.Nil(t, Join(OR, nil, nil))
	assert.Same(t, x, Join(AND, nil, x))

	joined := Join(OR, x, nil, y)
	b, ok := joined.(*Boolean)
	if assert.True(t, ok) {
		assert.Equal(t, OR, b.Op)
		assert.Len(t, b.Children, 2)
	}

	assert.Nil(t, Not(nil))
}

func TestProximity_Rotations(t *testing.T) {
	p := &Proximity{Terms: []string{"a", "b", "c"}, Within: 2}
	assert.Equal(t, [][]string{{"a", "b", "c"}}, p.Rotations())

	p.IgnoreOrder = true
	assert.Equal(t, [][]string{
		{"a", "b", "c"},
		{"b", "c", "a"},
		{"c", "a", "b"},
	}, p.Rotations())
}

func TestLeaves(t *testing.T) {
	tree := &Boolean{Op: AND, Children: []Node{
		&Term{Field: "a", Term: "x"},
		Not(&Wildcard{Field: "b", Term: "y*"}),
		&Boolean{Op: OR, Children: []Node{&Range{Field: "c", Lower: "1", Upper: "2"}}},
	}}

	leaves := Leaves(tree)
	kinds := make([]Kind, len(leaves))
	for i, l := range leaves {
		kinds[i] = l.Kind()
	}
	assert.Equal(t, []Kind{KindTerm, KindWildcard, KindRange}, kinds)
	assert.Equal(t, "b", leaves[1].FieldName())
}
