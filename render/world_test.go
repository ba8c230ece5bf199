// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"slices"
	"testing"
)

type position struct{ X, Y float32 }

func TestWorldSpawnDespawn(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	if a == 0 || b == 0 || a == b {
		t.Fatalf("Spawn returned %d, %d; want distinct non-zero ids", a, b)
	}
	if !w.Contains(a) || !w.Contains(b) {
		t.Error("spawned entities not alive")
	}

	pos := ComponentsOf[position](w)
	pos.Insert(a, position{1, 2})
	pos.Insert(b, position{3, 4})

	if !w.Despawn(a) {
		t.Error("Despawn(a) = false, want true")
	}
	if w.Despawn(a) {
		t.Error("second Despawn(a) = true, want false")
	}
	if w.Contains(a) {
		t.Error("despawned entity still alive")
	}
	if _, ok := pos.Get(a); ok {
		t.Error("component of despawned entity still present")
	}
	if got, ok := pos.Get(b); !ok || got != (position{3, 4}) {
		t.Errorf("Get(b) = %v, %v; want {3 4}, true", got, ok)
	}
	if got := w.Entities(); !slices.Equal(got, []Entity{b}) {
		t.Errorf("Entities() = %v, want [%d]", got, b)
	}
}

func TestWorldResources(t *testing.T) {
	w := NewWorld()
	if _, ok := Resource[int](w); ok {
		t.Fatal("empty world has an int resource")
	}
	InsertResource(w, 42)
	InsertResource(w, "name")
	if v, ok := Resource[int](w); !ok || v != 42 {
		t.Errorf("Resource[int] = %v, %v", v, ok)
	}
	InsertResource(w, 7)
	if v, _ := Resource[int](w); v != 7 {
		t.Errorf("Resource[int] after replace = %v, want 7", v)
	}
	if !RemoveResource[int](w) || RemoveResource[int](w) {
		t.Error("RemoveResource should succeed once")
	}
	if v, ok := Resource[string](w); !ok || v != "name" {
		t.Errorf("Resource[string] = %q, %v", v, ok)
	}
}

func TestComponentsRemoveKeepsOrder(t *testing.T) {
	c := NewComponents[int]()
	for e := Entity(1); e <= 5; e++ {
		c.Insert(e, int(e)*10)
	}
	c.Insert(3, 33)
	if !c.Remove(2) {
		t.Fatal("Remove(2) = false")
	}
	if c.Remove(2) {
		t.Error("Remove(2) twice = true")
	}

	var got []int
	c.Each(func(_ Entity, v int) { got = append(got, v) })
	if want := []int{10, 33, 40, 50}; !slices.Equal(got, want) {
		t.Errorf("Each values = %v, want %v", got, want)
	}
	if want := []Entity{1, 3, 4, 5}; !slices.Equal(c.Entities(), want) {
		t.Errorf("Entities() = %v, want %v", c.Entities(), want)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestComponentsOfReturnsSameStore(t *testing.T) {
	w := NewWorld()
	if ComponentsOf[position](w) != ComponentsOf[position](w) {
		t.Error("ComponentsOf returned different stores")
	}
}

func TestExtractComponents(t *testing.T) {
	main, rw := NewWorld(), NewWorld()
	a, b := main.Spawn(), main.Spawn()
	pos := ComponentsOf[position](main)
	pos.Insert(a, position{1, 1})
	pos.Insert(b, position{2, 2})

	if n := ExtractComponents[position](main, rw); n != 2 {
		t.Fatalf("extracted %d, want 2", n)
	}
	if got, ok := ComponentsOf[position](rw).Get(a); !ok || got != (position{1, 1}) {
		t.Errorf("mirror of a = %v, %v", got, ok)
	}

	// Later main-world edits only show up after the next extraction.
	pos.Insert(a, position{9, 9})
	if got, _ := ComponentsOf[position](rw).Get(a); got != (position{1, 1}) {
		t.Errorf("mirror changed before extraction: %v", got)
	}

	main.Despawn(b)
	if n := ExtractComponents[position](main, rw); n != 1 {
		t.Fatalf("extracted %d after despawn, want 1", n)
	}
	if _, ok := ComponentsOf[position](rw).Get(b); ok {
		t.Error("despawned entity still mirrored")
	}
	if got, _ := ComponentsOf[position](rw).Get(a); got != (position{9, 9}) {
		t.Errorf("mirror of a = %v, want {9 9}", got)
	}
}
