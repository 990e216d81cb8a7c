package fact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smilemakc/retecore/internal/value"
)

func TestInsertGetSet(t *testing.T) {
	s := New()
	h := s.Insert("User", map[string]value.Value{"Name": value.String("Ada")})

	v, ok := s.Get(h, "Name")
	require.True(t, ok)
	require.Equal(t, "Ada", v.String())

	require.NoError(t, s.Set(h, "Address.City", value.String("Berlin")))
	v, ok = s.Get(h, "Address.City")
	require.True(t, ok)
	require.Equal(t, "Berlin", v.String())
}

func TestGetMissingFieldIsAbsence(t *testing.T) {
	s := New()
	h := s.Insert("User", map[string]value.Value{})
	_, ok := s.Get(h, "Nope")
	require.False(t, ok)
}

func TestRetractRemovesFromIndex(t *testing.T) {
	s := New()
	h := s.Insert("User", map[string]value.Value{})
	require.Equal(t, 1, s.CountByType("User"))

	require.NoError(t, s.Retract(h))
	require.Equal(t, 0, s.CountByType("User"))
	require.False(t, s.Exists(h))

	err := s.Retract(h)
	require.Error(t, err)
}

func TestIterByTypeVisitsAllLiveFacts(t *testing.T) {
	s := New()
	s.Insert("Order", map[string]value.Value{"Total": value.Int(1)})
	s.Insert("Order", map[string]value.Value{"Total": value.Int(2)})
	s.Insert("User", map[string]value.Value{})

	count := 0
	s.IterByType("Order", func(h Handle) { count++ })
	require.Equal(t, 2, count)
}

func TestInsertStreamEventCarriesMeta(t *testing.T) {
	s := New()
	now := time.Unix(1_700_000_000, 0).UTC()
	h := s.InsertStreamEvent("Click", map[string]value.Value{}, StreamMeta{EventTime: now, Stream: "clicks"})

	meta, ok := s.StreamMetaOf(h)
	require.True(t, ok)
	require.Equal(t, "clicks", meta.Stream)
	require.True(t, meta.EventTime.Equal(now))
}

type recordingListener struct {
	inserts, mutates, retracts int
}

func (r *recordingListener) OnInsert(Handle)  { r.inserts++ }
func (r *recordingListener) OnMutate(Handle)  { r.mutates++ }
func (r *recordingListener) OnRetract(Handle) { r.retracts++ }

func TestListenerNotifications(t *testing.T) {
	s := New()
	l := &recordingListener{}
	s.Subscribe(l)

	h := s.Insert("User", map[string]value.Value{})
	require.NoError(t, s.Set(h, "Name", value.String("Ada")))
	require.NoError(t, s.Retract(h))

	require.Equal(t, 1, l.inserts)
	require.Equal(t, 1, l.mutates)
	require.Equal(t, 1, l.retracts)
}
