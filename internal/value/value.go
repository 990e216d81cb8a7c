// Package value implements the dynamic Value sum type shared by facts,
// conditions, and actions (spec §3: Value).
//
// Grounded on _examples/smilemakc-mbflow's internal/domain/variables.go
// (InferType/VariableType) and internal/domain/types.go's type-tag style —
// adapted here into a closed Value union with natural equality/ordering
// instead of a loose VariableType hint over interface{}.
package value

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags the concrete representation carried by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindTime
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged union described by spec §3. Absence is represented
// by the absence of a Value (a nil Value or a missing map entry), never by
// a dedicated tag, except where handler return values need to signal null
// explicitly (see Null).
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
	list []Value
	m    map[string]Value
	null bool
}

// Null is the explicit null Value returned by handlers (spec §3).
var Null = Value{null: true}

func Int(i int64) Value                  { return Value{kind: KindInt, i: i} }
func Float(f float64) Value              { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value                  { return Value{kind: KindBool, b: b} }
func String(s string) Value              { return Value{kind: KindString, s: s} }
func Time(t time.Time) Value             { return Value{kind: KindTime, t: t} }
func List(items []Value) Value           { return Value{kind: KindList, list: items} }
func Map(fields map[string]Value) Value  { return Value{kind: KindMap, m: fields} }

func (v Value) IsNull() bool { return v.null }
func (v Value) Kind() Kind   { return v.kind }

func (v Value) Int() int64            { return v.i }
func (v Value) Float() float64        { return v.f }
func (v Value) Bool() bool            { return v.b }
func (v Value) String() string        { return v.s }
func (v Value) Time() time.Time       { return v.t }
func (v Value) List() []Value         { return v.list }
func (v Value) Map() map[string]Value { return v.m }

// AsFloat returns the numeric value of v promoted to float64, and whether v
// was numeric at all (int or float).
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// FromGo converts a plain Go value (as produced by JSON decoding or handed
// in by a caller) into a Value. Maps and slices are converted recursively.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case time.Time:
		return Time(t)
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromGo(e)
		}
		return List(out)
	case []Value:
		return List(t)
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = FromGo(e)
		}
		return Map(out)
	case map[string]Value:
		return Map(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ToGo converts a Value back into a plain Go value suitable for JSON
// encoding or handing back to a caller.
func ToGo(v Value) any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindTime:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = ToGo(e)
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = ToGo(e)
		}
		return out
	default:
		if v.null {
			return nil
		}
		return nil
	}
}

// Equal implements the equality rules of spec §4.A: strict type match
// except integer<->float comparison, which promotes to float.
func Equal(a, b Value) bool {
	if a.null || b.null {
		return a.null == b.null
	}
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			return af == bf
		}
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindTime:
		return a.t.Equal(b.t)
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare returns (-1, 0, 1, ok). ok is false when the values are not
// ordering-comparable (spec §4.A: "other ordered comparisons fail,
// returns false, non-fatal").
func Compare(a, b Value) (int, bool) {
	if af, aok := a.AsFloat(); aok {
		if bf, bok := b.AsFloat(); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	case KindTime:
		switch {
		case a.t.Before(b.t):
			return -1, true
		case a.t.After(b.t):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Contains, StartsWith, EndsWith implement the case-sensitive string
// operators of spec §3. They return false (non-fatal) on non-string
// operands rather than erroring.
func Contains(a, b Value) bool {
	if a.kind != KindString || b.kind != KindString {
		return false
	}
	return strings.Contains(a.s, b.s)
}

func StartsWith(a, b Value) bool {
	if a.kind != KindString || b.kind != KindString {
		return false
	}
	return strings.HasPrefix(a.s, b.s)
}

func EndsWith(a, b Value) bool {
	if a.kind != KindString || b.kind != KindString {
		return false
	}
	return strings.HasSuffix(a.s, b.s)
}
