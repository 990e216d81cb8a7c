package condeval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

func TestAtomMissingPathIsFalseNotError(t *testing.T) {
	s := fact.New()
	h := s.Insert("User", map[string]value.Value{})
	e := New(s, nil)

	ok, err := e.Evaluate(rule.Atom("x", "Nope", rule.OpEq, rule.LiteralOperand("1")), Bindings{"x": h})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAtomMismatchedTypesIsFalse(t *testing.T) {
	s := fact.New()
	h := s.Insert("User", map[string]value.Value{"Active": value.Bool(true)})
	e := New(s, nil)

	ok, err := e.Evaluate(rule.Atom("x", "Active", rule.OpGt, rule.LiteralOperand("1")), Bindings{"x": h})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAndShortCircuitsAndOrSucceeds(t *testing.T) {
	s := fact.New()
	h := s.Insert("User", map[string]value.Value{"Age": value.Int(30)})
	e := New(s, nil)

	tree := rule.And(
		rule.Atom("x", "Age", rule.OpGte, rule.LiteralOperand("18")),
		rule.Not(rule.Atom("x", "Age", rule.OpGt, rule.LiteralOperand("100"))),
	)
	ok, err := e.Evaluate(tree, Bindings{"x": h})
	require.NoError(t, err)
	require.True(t, ok)

	orTree := rule.Or(
		rule.Atom("x", "Age", rule.OpGt, rule.LiteralOperand("1000")),
		rule.Atom("x", "Age", rule.OpEq, rule.LiteralOperand("30")),
	)
	ok, err = e.Evaluate(orTree, Bindings{"x": h})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExistsAndForAll(t *testing.T) {
	s := fact.New()
	s.Insert("Order", map[string]value.Value{"Total": value.Int(10)})
	s.Insert("Order", map[string]value.Value{"Total": value.Int(20)})
	e := New(s, nil)

	existsTree := rule.Exists("Order", rule.Atom("", "Total", rule.OpGt, rule.LiteralOperand("15")))
	ok, err := e.Evaluate(existsTree, Bindings{})
	require.NoError(t, err)
	require.True(t, ok)

	forAllTree := rule.ForAll("Order", rule.Atom("", "Total", rule.OpGt, rule.LiteralOperand("0")))
	ok, err = e.Evaluate(forAllTree, Bindings{})
	require.NoError(t, err)
	require.True(t, ok)

	forAllFalse := rule.ForAll("Order", rule.Atom("", "Total", rule.OpGt, rule.LiteralOperand("15")))
	ok, err = e.Evaluate(forAllFalse, Bindings{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestForAllVacuouslyTrueOnEmpty(t *testing.T) {
	s := fact.New()
	e := New(s, nil)
	ok, err := e.Evaluate(rule.ForAll("Nothing", rule.Atom("", "X", rule.OpEq, rule.LiteralOperand("1"))), Bindings{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFunctionAtomLen(t *testing.T) {
	s := fact.New()
	h := s.Insert("User", map[string]value.Value{"Name": value.String("Ada")})
	e := New(s, nil)

	ok, err := e.Evaluate(rule.FunctionAtom("len", []string{"x.Name"}, rule.OpEq, rule.LiteralOperand("3")), Bindings{"x": h})
	require.NoError(t, err)
	require.True(t, ok)
}
