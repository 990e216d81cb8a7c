package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/alpha"
	"github.com/smilemakc/retecore/internal/condeval"
	"github.com/smilemakc/retecore/internal/fact"
	"github.com/smilemakc/retecore/internal/value"
)

func TestTumblingWindowAssignsFixedSpans(t *testing.T) {
	w := Tumbling(10 * time.Second)
	t1 := time.Unix(5, 0)
	t2 := time.Unix(12, 0)
	span1 := w.AssignTumbling(t1)
	span2 := w.AssignTumbling(t2)
	require.True(t, span1.Contains(t1))
	require.False(t, span1.Contains(t2))
	require.True(t, span2.Contains(t2))
}

func TestSessionAssignerMergesWithinGap(t *testing.T) {
	a := NewSessionAssigner(5 * time.Second)
	s1 := a.Assign("k", time.Unix(0, 0))
	s2 := a.Assign("k", time.Unix(3, 0))
	require.Equal(t, s1.Start, s2.Start)

	s3 := a.Assign("k", time.Unix(20, 0))
	require.NotEqual(t, s1.Start, s3.Start)
}

func TestWatermarkBoundedOutOfOrder(t *testing.T) {
	wm := &Watermark{Strategy: BoundedOutOfOrder, OutOfOrderBound: 2 * time.Second}
	wm.Observe(time.Unix(10, 0))
	wm.Observe(time.Unix(9, 0)) // out of order, doesn't regress maxSeen
	cur := wm.Current()
	require.Equal(t, time.Unix(8, 0), cur)
}

func TestIsLateRespectsAllowedLateness(t *testing.T) {
	watermark := time.Unix(100, 0)
	require.True(t, IsLate(watermark, 5*time.Second, time.Unix(94, 0)))
	require.False(t, IsLate(watermark, 5*time.Second, time.Unix(96, 0)))
}

func TestStreamAlphaNodeDropsLateEvents(t *testing.T) {
	store := fact.New()
	eval := condeval.New(store, nil)
	net := alpha.New(store, eval)
	node := NewStreamAlphaNode(net, Tumbling(time.Minute), MonotonicAscending, time.Second, LateDataDrop)

	h1 := store.InsertStreamEvent("Tick", map[string]value.Value{"N": value.Int(1)}, fact.StreamMeta{EventTime: time.Unix(100, 0)})
	require.NoError(t, node.Route("Tick", h1, fact.StreamMeta{EventTime: time.Unix(100, 0)}))

	h2 := store.InsertStreamEvent("Tick", map[string]value.Value{"N": value.Int(2)}, fact.StreamMeta{EventTime: time.Unix(50, 0)})
	require.NoError(t, node.Route("Tick", h2, fact.StreamMeta{EventTime: time.Unix(50, 0)}))
	require.Empty(t, node.SideOutput())
}

func TestStreamAlphaNodeSideOutputsLateEvents(t *testing.T) {
	store := fact.New()
	eval := condeval.New(store, nil)
	net := alpha.New(store, eval)
	node := NewStreamAlphaNode(net, Tumbling(time.Minute), MonotonicAscending, time.Second, LateDataSideOutput)

	store.InsertStreamEvent("Tick", map[string]value.Value{"N": value.Int(1)}, fact.StreamMeta{EventTime: time.Unix(100, 0)})
	node.Route("Tick", fact.Handle{}, fact.StreamMeta{EventTime: time.Unix(100, 0)})

	h2 := store.InsertStreamEvent("Tick", map[string]value.Value{"N": value.Int(2)}, fact.StreamMeta{EventTime: time.Unix(50, 0)})
	require.NoError(t, node.Route("Tick", h2, fact.StreamMeta{EventTime: time.Unix(50, 0)}))
	require.Len(t, node.SideOutput(), 1)
}

func TestStreamJoinNodeEmitsMatchingPairWithinWindow(t *testing.T) {
	store := fact.New()
	window := Tumbling(time.Minute)
	keyOf := func(snap value.Value) value.Value {
		v, _ := value.Get(snap, "OrderID")
		return v
	}
	join := NewStreamJoinNode(store, window, JoinInner, keyOf, keyOf)

	left := store.Insert("Order", map[string]value.Value{"OrderID": value.String("o1")})
	right := store.Insert("Shipment", map[string]value.Value{"OrderID": value.String("o1")})

	pairs := join.AddLeft(left, time.Unix(10, 0))
	require.Empty(t, pairs)
	pairs = join.AddRight(right, time.Unix(20, 0))
	require.Len(t, pairs, 1)
	require.True(t, pairs[0].Matched)
}

func TestStreamJoinNodeLeftOuterEmitsUnmatchedOnClose(t *testing.T) {
	store := fact.New()
	window := Tumbling(time.Minute)
	keyOf := func(snap value.Value) value.Value {
		v, _ := value.Get(snap, "OrderID")
		return v
	}
	join := NewStreamJoinNode(store, window, JoinLeftOuter, keyOf, keyOf)

	left := store.Insert("Order", map[string]value.Value{"OrderID": value.String("o1")})
	join.AddLeft(left, time.Unix(10, 0))

	span := window.AssignTumbling(time.Unix(10, 0))
	pairs := join.CloseSpan(span)
	require.Len(t, pairs, 1)
	require.False(t, pairs[0].Matched)
	require.Equal(t, left, pairs[0].Left)
}

func TestMinWatermarkAcrossStreams(t *testing.T) {
	a := &Watermark{Strategy: MonotonicAscending}
	b := &Watermark{Strategy: MonotonicAscending}
	a.Observe(time.Unix(100, 0))
	b.Observe(time.Unix(50, 0))
	require.Equal(t, time.Unix(50, 0), Min(a, b))
}
