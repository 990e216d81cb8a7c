package agenda

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/fact"
)

func TestSalienceStrategyOrdersHighestFirst(t *testing.T) {
	a := New(StrategySalience, 1)
	a.Add(&Activation{RuleName: "low", Salience: 1})
	a.Add(&Activation{RuleName: "high", Salience: 10})
	a.Add(&Activation{RuleName: "mid", Salience: 5})

	require.Equal(t, "high", a.PopNext().RuleName)
	require.Equal(t, "mid", a.PopNext().RuleName)
	require.Equal(t, "low", a.PopNext().RuleName)
	require.Nil(t, a.PopNext())
}

func TestSimplicityAndComplexityAreInverse(t *testing.T) {
	simple := New(StrategySimplicity, 1)
	simple.Add(&Activation{RuleName: "complex", ConditionCount: 5})
	simple.Add(&Activation{RuleName: "simple", ConditionCount: 1})
	require.Equal(t, "simple", simple.PopNext().RuleName)

	complex := New(StrategyComplexity, 1)
	complex.Add(&Activation{RuleName: "complex", ConditionCount: 5})
	complex.Add(&Activation{RuleName: "simple", ConditionCount: 1})
	require.Equal(t, "complex", complex.PopNext().RuleName)
}

func TestRemoveForFactPrunesBoundActivations(t *testing.T) {
	a := New(StrategySalience, 1)
	h1 := fact.Handle{Type: "User"}
	h2 := fact.Handle{Type: "Order"}
	a.Add(&Activation{RuleName: "a", Facts: []fact.Handle{h1}})
	a.Add(&Activation{RuleName: "b", Facts: []fact.Handle{h2}})

	a.RemoveForFact(h1)
	require.Equal(t, 1, a.Len())
	require.Equal(t, "b", a.PopNext().RuleName)
}

func TestRandomStrategyDrainsAllActivations(t *testing.T) {
	a := New(StrategyRandom, 42)
	for i := 0; i < 5; i++ {
		a.Add(&Activation{RuleName: "r"})
	}
	count := 0
	for a.PopNext() != nil {
		count++
	}
	require.Equal(t, 5, count)
}

func TestClearEmptiesAgenda(t *testing.T) {
	a := New(StrategySalience, 1)
	a.Add(&Activation{RuleName: "a"})
	a.Clear()
	require.Equal(t, 0, a.Len())
}
