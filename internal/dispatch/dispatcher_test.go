package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/rule"
	"github.com/smilemakc/retecore/internal/value"
)

func newEnv(store *fact.Store, bindings condeval.Bindings) *Env {
	return &Env{
		Store:     store,
		Bindings:  bindings,
		Functions: NewFunctionRegistry(),
		Handlers:  NewHandlerRegistry(),
		Retry:     NoRetryPolicy(),
		Logger:    zerolog.Nop(),
	}
}

func TestRunSetWritesExpressionResult(t *testing.T) {
	store := fact.New()
	h := store.Insert("User", map[string]value.Value{"Age": value.Int(30)})
	env := newEnv(store, condeval.Bindings{"x": h})
	d := New()

	err := d.Run(context.Background(), rule.SetAction("x.Age", "x.Age + 1"), env)
	require.NoError(t, err)

	v, ok := store.Get(h, "Age")
	require.True(t, ok)
	require.Equal(t, int64(31), v.Int())
}

func TestRunCallInvokesFunctionRegistry(t *testing.T) {
	store := fact.New()
	h := store.Insert("User", map[string]value.Value{})
	env := newEnv(store, condeval.Bindings{"x": h})
	d := New()

	called := false
	env.Functions.Register("ping", func(args []value.Value, view fact.Mutator) (value.Value, error) {
		called = true
		return value.Null, nil
	})

	err := d.Run(context.Background(), rule.CallAction("ping"), env)
	require.NoError(t, err)
	require.True(t, called)
}

func TestRunCustomDispatchesViaHandlerRegistry(t *testing.T) {
	store := fact.New()
	h := store.Insert("User", map[string]value.Value{"Name": value.String("Ada")})
	env := newEnv(store, condeval.Bindings{"x": h})
	d := New()

	var gotName string
	env.Handlers.Register("notify", func(params Params, view fact.Mutator) (value.Value, error) {
		gotName = params["name"].String()
		return value.Null, nil
	})

	action := rule.CustomAction("notify", map[string]string{"name": "x.Name"})
	err := d.Run(context.Background(), action, env)
	require.NoError(t, err)
	require.Equal(t, "Ada", gotName)
}

func TestRunRetractRemovesFact(t *testing.T) {
	store := fact.New()
	h := store.Insert("User", map[string]value.Value{})
	env := newEnv(store, condeval.Bindings{"x": h})
	d := New()

	err := d.Run(context.Background(), rule.RetractAction("x"), env)
	require.NoError(t, err)
	require.False(t, store.Exists(h))
}

func TestRunCustomUnknownHandlerErrors(t *testing.T) {
	store := fact.New()
	env := newEnv(store, condeval.Bindings{})
	d := New()

	err := d.Run(context.Background(), rule.CustomAction("missing", nil), env)
	require.Error(t, err)
}
