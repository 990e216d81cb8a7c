package beta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/value"
)

func TestJoinNodeEmitsOnMatchingConstraint(t *testing.T) {
	s := fact.New()
	u := s.Insert("User", map[string]value.Value{"ID": value.Int(1)})
	o := s.Insert("Order", map[string]value.Value{"UserID": value.Int(1)})

	jn := NewJoinNode(s, "o", []Constraint{{LeftVar: "x", LeftPath: "ID", RightVar: "o", RightPath: "UserID"}})

	var got []Token
	jn.Subscribe(func(tok Token, positive bool) {
		if positive {
			got = append(got, tok)
		}
	})

	jn.LeftInput(Token{Bindings: condeval.Bindings{"x": u}, Facts: []fact.Handle{u}}, true)
	jn.RightInput(o, true)

	require.Len(t, got, 1)
	require.Equal(t, o, got[0].Bindings["o"])
}

func TestJoinNodeRetractsDerivedTokenOnFactRetraction(t *testing.T) {
	s := fact.New()
	u := s.Insert("User", map[string]value.Value{"ID": value.Int(1)})
	o := s.Insert("Order", map[string]value.Value{"UserID": value.Int(1)})

	jn := NewJoinNode(s, "o", []Constraint{{LeftVar: "x", LeftPath: "ID", RightVar: "o", RightPath: "UserID"}})

	var positives, negatives int
	jn.Subscribe(func(tok Token, positive bool) {
		if positive {
			positives++
		} else {
			negatives++
		}
	})

	jn.LeftInput(Token{Bindings: condeval.Bindings{"x": u}, Facts: []fact.Handle{u}}, true)
	jn.RightInput(o, true)
	jn.RightInput(o, false)

	require.Equal(t, 1, positives)
	require.Equal(t, 1, negatives)
}

func TestNotNodeEmitsWhenNoRightMatchAndRetractsOnMatch(t *testing.T) {
	s := fact.New()
	u := s.Insert("User", map[string]value.Value{"ID": value.Int(1)})
	o := s.Insert("Order", map[string]value.Value{"UserID": value.Int(1)})

	nn := NewNotNode(s, "o", []Constraint{{LeftVar: "x", LeftPath: "ID", RightVar: "o", RightPath: "UserID"}})

	var events []bool
	nn.Subscribe(func(tok Token, positive bool) { events = append(events, positive) })

	nn.LeftInput(Token{Bindings: condeval.Bindings{"x": u}, Facts: []fact.Handle{u}}, true)
	require.Equal(t, []bool{true}, events)

	nn.RightInput(o, true)
	require.Equal(t, []bool{true, false}, events)

	nn.RightInput(o, false)
	require.Equal(t, []bool{true, false, true}, events)
}
