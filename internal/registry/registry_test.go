package registry

import "testing"

type counterObject struct{ n int }

func TestBindExplicitAndLookup(t *testing.T) {
	r := New(nil)
	obj := &counterObject{n: 3}

	r.BindExplicit("counter", obj)

	got, ok := r.Lookup("counter")
	if !ok {
		t.Fatal("expected counter to be bound")
	}
	if got.(*counterObject) != obj {
		t.Fatalf("expected round-trip identity, got %+v", got)
	}
}

func TestBindImplicitIsStableForSameObject(t *testing.T) {
	r := New(nil)
	obj := &counterObject{n: 1}

	name1 := r.BindImplicit(obj)
	name2 := r.BindImplicit(obj)

	if name1 != name2 {
		t.Fatalf("expected stable Name across repeated BindImplicit calls, got %q and %q", name1, name2)
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one binding, got %d", r.Len())
	}
}

func TestBindImplicitDistinctObjectsGetDistinctNames(t *testing.T) {
	r := New(nil)
	a := &counterObject{n: 1}
	b := &counterObject{n: 2}

	nameA := r.BindImplicit(a)
	nameB := r.BindImplicit(b)

	if nameA == nameB {
		t.Fatalf("expected distinct Names, both were %q", nameA)
	}
}

func TestReleaseRemovesOnlyImplicitBindings(t *testing.T) {
	r := New(nil)
	explicitObj := &counterObject{n: 1}
	implicitObj := &counterObject{n: 2}

	r.BindExplicit("fixed", explicitObj)
	implicitName := r.BindImplicit(implicitObj)

	r.Release("fixed")
	if _, ok := r.Lookup("fixed"); !ok {
		t.Fatal("Release must not remove an Explicit binding")
	}

	r.Release(implicitName)
	if _, ok := r.Lookup(implicitName); ok {
		t.Fatal("Release must remove an Implicit binding")
	}
}

func TestReleaseUnknownNameIsNoop(t *testing.T) {
	r := New(nil)
	r.Release("never-bound")
	if r.Len() != 0 {
		t.Fatalf("expected no bindings, got %d", r.Len())
	}
}

func TestBindExplicitOverwriteRetainsExplicitKind(t *testing.T) {
	r := New(nil)
	first := &counterObject{n: 1}
	second := &counterObject{n: 2}

	r.BindExplicit("svc", first)
	r.BindExplicit("svc", second)

	r.Release("svc")
	got, ok := r.Lookup("svc")
	if !ok {
		t.Fatal("overwritten Explicit binding must still resist Release")
	}
	if got.(*counterObject) != second {
		t.Fatalf("expected last-write-wins, got %+v", got)
	}
}
