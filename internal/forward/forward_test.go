package forward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/agenda"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

func TestExecuteFiresNetworkRuleThenStopsOnceConditionNoLongerHolds(t *testing.T) {
	store := fact.New()
	base := rule.NewBase()
	e := New(base, store)

	r := &rule.Rule{
		Name:      "markProcessed",
		Condition: rule.Atom("x", "Processed", rule.OpEq, rule.LiteralOperand("false")),
		Actions:   []rule.Action{rule.SetAction("x.Processed", "true")},
		Bindings:  map[string]string{"x": "User"},
	}
	require.NoError(t, base.Add(r))
	e.Compile(r)

	store.Insert("User", map[string]value.Value{"Processed": value.Bool(false)})

	result, err := e.Execute(context.Background(), Options{Strategy: agenda.StrategySalience, MaxCycles: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.RulesFired)
	require.Equal(t, HaltEmpty, result.HaltReason)

	result, err = e.Execute(context.Background(), Options{Strategy: agenda.StrategySalience, MaxCycles: 10})
	require.NoError(t, err)
	require.Equal(t, 0, result.RulesFired)
	require.Equal(t, HaltEmpty, result.HaltReason)
}

func TestExecuteOrdersIndependentActivationsBySalience(t *testing.T) {
	store := fact.New()
	base := rule.NewBase()
	e := New(base, store)

	low := &rule.Rule{
		Name:      "low",
		Salience:  1,
		Condition: rule.Atom("x", "Flag", rule.OpEq, rule.LiteralOperand("true")),
		Actions:   []rule.Action{rule.LogAction("low fired")},
		Bindings:  map[string]string{"x": "TypeA"},
	}
	high := &rule.Rule{
		Name:      "high",
		Salience:  10,
		Condition: rule.Atom("x", "Flag", rule.OpEq, rule.LiteralOperand("true")),
		Actions:   []rule.Action{rule.LogAction("high fired")},
		Bindings:  map[string]string{"x": "TypeB"},
	}
	require.NoError(t, base.Add(low))
	require.NoError(t, base.Add(high))
	e.Compile(low)
	e.Compile(high)

	store.Insert("TypeA", map[string]value.Value{"Flag": value.Bool(true)})
	store.Insert("TypeB", map[string]value.Value{"Flag": value.Bool(true)})

	result, err := e.Execute(context.Background(), Options{
		Strategy:  agenda.StrategySalience,
		MaxCycles: 10,
		Debug:     true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.RulesFired)
	require.Len(t, result.Traces, 2)
	require.Equal(t, "high", result.Traces[0].RuleFired)
	require.Equal(t, "low", result.Traces[1].RuleFired)
}

func TestExecuteFallsBackToBruteForceForDisjunctiveCondition(t *testing.T) {
	store := fact.New()
	base := rule.NewBase()
	e := New(base, store)

	r := &rule.Rule{
		Name: "vipDiscount",
		Condition: rule.Or(
			rule.Atom("x", "Tier", rule.OpEq, rule.LiteralOperand(`"gold"`)),
			rule.Atom("x", "Tier", rule.OpEq, rule.LiteralOperand(`"platinum"`)),
		),
		Actions:  []rule.Action{rule.SetAction("x.Flagged", "true")},
		Bindings: map[string]string{"x": "Customer"},
	}
	require.NoError(t, base.Add(r))
	e.Compile(r)
	require.False(t, e.compiled["vipDiscount"].network)

	gold := store.Insert("Customer", map[string]value.Value{"Tier": value.String("gold")})
	silver := store.Insert("Customer", map[string]value.Value{"Tier": value.String("silver")})

	result, err := e.Execute(context.Background(), Options{Strategy: agenda.StrategySalience, MaxCycles: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.RulesFired)

	flagged, ok := store.Get(gold, "Flagged")
	require.True(t, ok)
	require.True(t, flagged.Bool())

	_, ok = store.Get(silver, "Flagged")
	require.False(t, ok)
}

func TestExecuteHaltsAtMaxCycles(t *testing.T) {
	store := fact.New()
	base := rule.NewBase()
	e := New(base, store)

	flipOff := &rule.Rule{
		Name:      "flipOff",
		Condition: rule.Atom("x", "Flag", rule.OpEq, rule.LiteralOperand("true")),
		Actions:   []rule.Action{rule.SetAction("x.Flag", "false")},
		Bindings:  map[string]string{"x": "Ticker"},
	}
	flipOn := &rule.Rule{
		Name:      "flipOn",
		Condition: rule.Atom("x", "Flag", rule.OpEq, rule.LiteralOperand("false")),
		Actions:   []rule.Action{rule.SetAction("x.Flag", "true")},
		Bindings:  map[string]string{"x": "Ticker"},
	}
	require.NoError(t, base.Add(flipOff))
	require.NoError(t, base.Add(flipOn))
	e.Compile(flipOff)
	e.Compile(flipOn)
	store.Insert("Ticker", map[string]value.Value{"Flag": value.Bool(true)})

	result, err := e.Execute(context.Background(), Options{Strategy: agenda.StrategySalience, MaxCycles: 3})
	require.NoError(t, err)
	require.Equal(t, HaltMaxCycles, result.HaltReason)
	require.Equal(t, 3, result.Cycles)
	require.Equal(t, 3, result.RulesFired)
}
