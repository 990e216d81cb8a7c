package rule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseRejectsDuplicateNames(t *testing.T) {
	b := NewBase()
	r := &Rule{Name: "r1", Condition: Atom("x", "Age", OpGt, LiteralOperand("18"))}
	require.NoError(t, b.Add(r))

	err := b.Add(&Rule{Name: "r1"})
	require.Error(t, err)
}

func TestBaseAddGetRemove(t *testing.T) {
	b := NewBase()
	require.NoError(t, b.Add(&Rule{Name: "r1", Salience: 5}))
	require.NoError(t, b.Add(&Rule{Name: "r2"}))

	got, ok := b.Get("r1")
	require.True(t, ok)
	require.Equal(t, 5, got.Salience)
	require.Equal(t, 2, b.Len())

	require.NoError(t, b.Remove("r1"))
	_, ok = b.Get("r1")
	require.False(t, ok)
	require.Equal(t, 1, b.Len())

	require.Error(t, b.Remove("r1"))
}

func TestConditionTreeConstructors(t *testing.T) {
	tree := And(
		Atom("x", "Age", OpGte, LiteralOperand("18")),
		Not(Atom("x", "Banned", OpEq, LiteralOperand("true"))),
		Exists("Order", Atom("o", "UserID", OpEq, FieldOperand("x.ID"))),
	)
	require.Equal(t, CondAnd, tree.Kind)
	require.Len(t, tree.Children, 3)
	require.Equal(t, CondNot, tree.Children[1].Kind)
	require.Equal(t, CondExists, tree.Children[2].Kind)
	require.Equal(t, "Order", tree.Children[2].FactType)
}
