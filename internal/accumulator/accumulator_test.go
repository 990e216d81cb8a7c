package accumulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

func TestSumOverFilteredFacts(t *testing.T) {
	store := fact.New()
	store.Insert("Order", map[string]value.Value{"Amount": value.Int(10), "Status": value.String("paid")})
	store.Insert("Order", map[string]value.Value{"Amount": value.Int(20), "Status": value.String("paid")})
	store.Insert("Order", map[string]value.Value{"Amount": value.Int(99), "Status": value.String("void")})

	eval := condeval.New(store, nil)
	acc := Accumulator{
		Fn:       Sum,
		FactType: "Order",
		Inner:    rule.Atom("", "Status", rule.OpEq, rule.LiteralOperand(`"paid"`)),
		Field:    "Amount",
	}

	out, err := acc.Evaluate(store, eval)
	require.NoError(t, err)
	require.InDelta(t, 30, out.Float(), 0.0001)
}

func TestCountAndAvg(t *testing.T) {
	store := fact.New()
	store.Insert("Reading", map[string]value.Value{"Value": value.Float(1)})
	store.Insert("Reading", map[string]value.Value{"Value": value.Float(3)})
	eval := condeval.New(store, nil)

	count := Accumulator{Fn: Count, FactType: "Reading", Inner: rule.ConditionNode{Kind: rule.CondAnd}, Field: "Value"}
	out, err := count.Evaluate(store, eval)
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Int())

	avg := Accumulator{Fn: Avg, FactType: "Reading", Inner: rule.ConditionNode{Kind: rule.CondAnd}, Field: "Value"}
	out, err = avg.Evaluate(store, eval)
	require.NoError(t, err)
	require.InDelta(t, 2.0, out.Float(), 0.0001)
}

func TestCountOnEmptySet(t *testing.T) {
	store := fact.New()
	eval := condeval.New(store, nil)
	acc := Accumulator{Fn: Count, FactType: "Nothing", Inner: rule.ConditionNode{Kind: rule.CondAnd}, Field: "X"}
	out, err := acc.Evaluate(store, eval)
	require.NoError(t, err)
	require.Equal(t, int64(0), out.Int())
}
