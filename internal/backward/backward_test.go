package backward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

func TestParseGoalLowersMemberChainAndOperator(t *testing.T) {
	cond, err := ParseGoal(`?x.Eligible == true`)
	require.NoError(t, err)
	require.Equal(t, rule.CondAtom, cond.Kind)
	require.Equal(t, "x", cond.FactVar)
	require.Equal(t, "Eligible", cond.Field)
	require.Equal(t, rule.OpEq, cond.Operator)
}

func TestParseGoalSupportsConjunction(t *testing.T) {
	cond, err := ParseGoal(`?x.Age >= 18 and ?x.Status == "gold"`)
	require.NoError(t, err)
	require.Equal(t, rule.CondAnd, cond.Kind)
	require.Len(t, cond.Children, 2)
}

func TestProveSucceedsAgainstExistingFact(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Age": value.Int(21)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	result, err := engine.Prove(context.Background(), base, store, `?x.Age >= 18`, map[string]string{"x": "Customer"}, Options{})
	require.NoError(t, err)
	require.True(t, result.Proved || len(result.Bindings) > 0)
	require.NotEmpty(t, result.Bindings)
}

func TestProveFailsWhenNoFactSatisfiesGoalAndNoRuleEstablishesIt(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Age": value.Int(10)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	result, err := engine.Prove(context.Background(), base, store, `?x.Age >= 18`, map[string]string{"x": "Customer"}, Options{})
	require.NoError(t, err)
	require.Empty(t, result.Bindings)
}

func TestProveChainsThroughRuleConclusion(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Age": value.Int(21), "Eligible": value.Bool(false)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	r := &rule.Rule{
		Name:      "markEligible",
		Condition: rule.Atom("x", "Age", rule.OpGte, rule.LiteralOperand("18")),
		Actions:   []rule.Action{rule.SetAction("x.Eligible", "true")},
		Bindings:  map[string]string{"x": "Customer"},
	}
	require.NoError(t, base.Add(r))

	result, err := engine.Prove(context.Background(), base, store, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{MaxDepth: 5, EnableMemoization: true})
	require.NoError(t, err)
	require.NotEmpty(t, result.Bindings)
	require.Contains(t, result.RulesUsed, "markEligible")

	// Prove must not leave lasting side effects: Eligible should still
	// read back as false after the speculative proof completes.
	handles := []fact.Handle{}
	store.IterByType("Customer", func(h fact.Handle) { handles = append(handles, h) })
	require.Len(t, handles, 1)
	v, ok := store.Get(handles[0], "Eligible")
	require.True(t, ok)
	require.False(t, v.Bool())
}

func TestProveRespectsMaxDepth(t *testing.T) {
	newBase := func() (*fact.Store, *rule.Base) {
		store := fact.New()
		store.Insert("Customer", map[string]value.Value{"Age": value.Int(21), "Step1": value.Bool(false), "Eligible": value.Bool(false)})
		base := rule.NewBase()
		require.NoError(t, base.Add(&rule.Rule{
			Name:      "markStep1",
			Condition: rule.Atom("x", "Age", rule.OpGte, rule.LiteralOperand("18")),
			Actions:   []rule.Action{rule.SetAction("x.Step1", "true")},
			Bindings:  map[string]string{"x": "Customer"},
		}))
		require.NoError(t, base.Add(&rule.Rule{
			Name:      "markEligible",
			Condition: rule.Atom("x", "Step1", rule.OpEq, rule.LiteralOperand("true")),
			Actions:   []rule.Action{rule.SetAction("x.Eligible", "true")},
			Bindings:  map[string]string{"x": "Customer"},
		}))
		return store, base
	}

	// Reaching Eligible requires chaining two rules (depth 2): shallow
	// search must fail, deeper search must succeed.
	store, base := newBase()
	eval := condeval.New(store, nil)
	engine := New(eval)
	shallow, err := engine.Prove(context.Background(), base, store, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{MaxDepth: 1})
	require.NoError(t, err)
	require.Empty(t, shallow.Bindings)

	store2, base2 := newBase()
	eval2 := condeval.New(store2, nil)
	engine2 := New(eval2)
	deep, err := engine2.Prove(context.Background(), base2, store2, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{MaxDepth: 5})
	require.NoError(t, err)
	require.NotEmpty(t, deep.Bindings)
}

func TestProveReportsProofTraceAndStatsForChainedRule(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Age": value.Int(21), "Eligible": value.Bool(false)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	require.NoError(t, base.Add(&rule.Rule{
		Name:      "markEligible",
		Condition: rule.Atom("x", "Age", rule.OpGte, rule.LiteralOperand("18")),
		Actions:   []rule.Action{rule.SetAction("x.Eligible", "true")},
		Bindings:  map[string]string{"x": "Customer"},
	}))

	result, err := engine.Prove(context.Background(), base, store, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{})
	require.NoError(t, err)
	require.True(t, result.Proved)
	require.Equal(t, []string{"markEligible"}, result.ProofTrace)
	require.Empty(t, result.MissingFacts)
	require.GreaterOrEqual(t, result.Stats.GoalsExplored, 1)
	require.GreaterOrEqual(t, result.Stats.RulesEvaluated, 1)
	require.Equal(t, result.Depth, result.Stats.MaxDepth)
}

func TestProveReportsMissingFactsWhenGoalIsUnreachable(t *testing.T) {
	store := fact.New()
	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	result, err := engine.Prove(context.Background(), base, store, `?x.Tier == "gold"`, map[string]string{"x": "Customer"}, Options{})
	require.NoError(t, err)
	require.False(t, result.Proved)
	require.Contains(t, result.MissingFacts, "Customer.Tier")
}

func TestInvalidateSupportDropsMemoEntryKeyedByFactTypeAndField(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Eligible": value.Bool(true)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	_, err := engine.Prove(context.Background(), base, store, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{EnableMemoization: true})
	require.NoError(t, err)
	require.NotEmpty(t, engine.memo)

	engine.InvalidateSupport("Customer", "Eligible")
	require.Empty(t, engine.memo)
}

func TestInvalidateTypeDropsMemoEntriesTouchingType(t *testing.T) {
	store := fact.New()
	store.Insert("Customer", map[string]value.Value{"Eligible": value.Bool(true)})

	eval := condeval.New(store, nil)
	engine := New(eval)
	base := rule.NewBase()

	_, err := engine.Prove(context.Background(), base, store, `?x.Eligible == true`, map[string]string{"x": "Customer"}, Options{EnableMemoization: true})
	require.NoError(t, err)
	require.NotEmpty(t, engine.memo)

	engine.InvalidateType("Customer")
	require.Empty(t, engine.memo)
}
