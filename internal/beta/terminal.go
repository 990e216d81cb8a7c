package beta

// TerminalNode sits at the end of a rule's join chain: each positive
// token becomes a candidate activation, handed to the agenda by the
// forward engine's wiring (spec §4.E: "on terminal (rule) node, a token
// becomes an activation").
type TerminalNode struct {
	RuleName string
	sinks    []OutputSink
}

// NewTerminalNode builds a terminal node for the named rule.
func NewTerminalNode(ruleName string) *TerminalNode {
	return &TerminalNode{RuleName: ruleName}
}

// Subscribe attaches a sink observing terminal tokens (positive =
// candidate activation, negative = invalidated activation).
func (t *TerminalNode) Subscribe(s OutputSink) {
	t.sinks = append(t.sinks, s)
}

// Input receives a token from the last join/not node in the chain.
func (t *TerminalNode) Input(tok Token, positive bool) {
	for _, s := range t.sinks {
		s(tok, positive)
	}
}
