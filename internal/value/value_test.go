package value

import "testing"

func TestEqualPromotesIntToFloat(t *testing.T) {
	if !Equal(Int(3), Float(3.0)) {
		t.Fatal("expected int 3 to equal float 3.0")
	}
	if Equal(Int(3), Float(3.1)) {
		t.Fatal("expected int 3 to not equal float 3.1")
	}
}

func TestCompareMixedNumeric(t *testing.T) {
	cmp, ok := Compare(Int(2), Float(3.5))
	if !ok || cmp != -1 {
		t.Fatalf("expected -1, true; got %d, %v", cmp, ok)
	}
}

func TestCompareIncomparableIsNonFatal(t *testing.T) {
	_, ok := Compare(Bool(true), Bool(false))
	if ok {
		t.Fatal("expected bool comparison to be non-comparable")
	}
}

func TestStringOperators(t *testing.T) {
	if !Contains(String("hello world"), String("wor")) {
		t.Fatal("expected contains to match")
	}
	if !StartsWith(String("hello"), String("he")) {
		t.Fatal("expected startsWith to match")
	}
	if !EndsWith(String("hello"), String("lo")) {
		t.Fatal("expected endsWith to match")
	}
	if Contains(Int(5), String("5")) {
		t.Fatal("expected non-string operand to yield false, not match")
	}
}

func TestPathGetSetDottedCreatesIntermediates(t *testing.T) {
	root := Map(map[string]Value{})
	root = Set(root, "User.Address.City", String("Berlin"))

	v, ok := Get(root, "User.Address.City")
	if !ok || v.String() != "Berlin" {
		t.Fatalf("expected Berlin, got %v, %v", v, ok)
	}

	_, ok = Get(root, "User.Address.Zip")
	if ok {
		t.Fatal("expected missing segment to yield absence")
	}

	_, ok = Get(root, "Other.Missing")
	if ok {
		t.Fatal("expected missing root segment to yield absence")
	}
}

func TestSetDoesNotMutateOriginal(t *testing.T) {
	root := Set(Map(map[string]Value{}), "A", Int(1))
	root2 := Set(root, "A", Int(2))

	v, _ := Get(root, "A")
	if v.Int() != 1 {
		t.Fatalf("expected original root unaffected, got %d", v.Int())
	}
	v2, _ := Get(root2, "A")
	if v2.Int() != 2 {
		t.Fatalf("expected updated root to see new value, got %d", v2.Int())
	}
}
