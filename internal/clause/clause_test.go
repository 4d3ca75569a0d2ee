package clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOp_NegateIsAnInvolution(t *testing.T) {
	for _, op := range []Op{OpEQ, OpRange, OpPhrase, OpFuzzy} {
		neg := op.Negate()
		assert.True(t, neg.Negated(), "%s should negate to a negated op", op)
		assert.False(t, op.Negated())
		assert.Equal(t, op, neg.Negate())
		assert.Equal(t, op, neg.Positive())
	}
	assert.Equal(t, OpGroup, OpGroup.Negate())
}

func TestTree_AddPreservesOrderPerBucket(t *testing.T) {
	var tree Tree
	tree.Add(Optional, Clause{Value: "b"})
	tree.Add(Required, Clause{Value: "a"})
	tree.Add(Optional, Clause{Value: "c"})
	tree.Add(Prohibited, Clause{Value: "d"})

	assert.Len(t, tree.Required, 1)
	assert.Equal(t, []string{"b", "c"}, []string{tree.Optional[0].Value, tree.Optional[1].Value})
	assert.Equal(t, "+a b c -d", tree.String())
	assert.False(t, tree.IsEmpty())
	assert.True(t, (&Tree{}).IsEmpty())
}

func TestClause_String(t *testing.T) {
	nested := &Tree{}
	nested.Add(Optional, Clause{Field: "title", Op: OpEQ, Value: "x"})

	tests := []struct {
		name string
		c    Clause
		want string
	}{
		{"term", Clause{Field: "title", Op: OpEQ, Value: "foo"}, "title:foo"},
		{"negated", Clause{Field: "title", Op: OpNE, Value: "fo*"}, "title!:fo*"},
		{"phrase", Clause{Field: "body", Op: OpEQ, Value: "a b", Quote: '"', Proximity: 3}, `body:"a b"~3`},
		{"range", Clause{Field: "date", Op: OpRange, Range: []string{"1", "2"}}, "date:[1 TO 2]"},
		{"bare", Clause{Op: OpEQ, Value: "foo"}, "foo"},
		{"group", Clause{Op: OpGroup, Group: nested}, "(title:x)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.String())
		})
	}
}
