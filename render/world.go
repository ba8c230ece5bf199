// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"reflect"
	"slices"
)

// Entity identifies an object in a [World]. The zero value is never issued.
type Entity uint32

// componentStore is the type-erased view of a [Components] store that the
// world uses to drop components of despawned entities.
type componentStore interface {
	remove(e Entity) bool
}

// World is an entity allocator plus a set of typed resources.
//
// Components live in [Components] stores, which are themselves resources
// obtained with [ComponentsOf]. The main world and the render world are two
// separate World values; extraction copies between them.
type World struct {
	next      Entity
	alive     map[Entity]struct{}
	resources map[reflect.Type]any
	stores    []componentStore
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		alive:     make(map[Entity]struct{}),
		resources: make(map[reflect.Type]any),
	}
}

// Spawn allocates a new entity.
func (w *World) Spawn() Entity {
	w.next++
	w.alive[w.next] = struct{}{}
	return w.next
}

// Despawn removes the entity and all of its components.
// It reports whether the entity was alive.
func (w *World) Despawn(e Entity) bool {
	if _, ok := w.alive[e]; !ok {
		return false
	}
	delete(w.alive, e)
	for _, s := range w.stores {
		s.remove(e)
	}
	return true
}

// Contains reports whether the entity is alive.
func (w *World) Contains(e Entity) bool {
	_, ok := w.alive[e]
	return ok
}

// Entities returns the live entities in ascending order.
func (w *World) Entities() []Entity {
	out := make([]Entity, 0, len(w.alive))
	for e := range w.alive {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// InsertResource stores value as the world's resource of type T,
// replacing any previous one.
func InsertResource[T any](w *World, value T) {
	w.resources[reflect.TypeFor[T]()] = value
}

// Resource returns the world's resource of type T.
func Resource[T any](w *World) (T, bool) {
	v, ok := w.resources[reflect.TypeFor[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RemoveResource deletes the resource of type T and reports whether it existed.
func RemoveResource[T any](w *World) bool {
	key := reflect.TypeFor[T]()
	if _, ok := w.resources[key]; !ok {
		return false
	}
	delete(w.resources, key)
	return true
}

// Components is an entity-keyed store for values of type T.
//
// Values are kept densely packed; removal swaps the last element into the
// hole. Iteration order is ascending by entity so that frame output does not
// depend on insertion history.
type Components[T any] struct {
	values   []T
	entities []Entity
	index    map[Entity]int
}

// NewComponents creates an empty store.
func NewComponents[T any]() *Components[T] {
	return &Components[T]{index: make(map[Entity]int)}
}

// ComponentsOf returns the world's store for T, creating and registering it
// on first use.
func ComponentsOf[T any](w *World) *Components[T] {
	if s, ok := Resource[*Components[T]](w); ok {
		return s
	}
	s := NewComponents[T]()
	InsertResource(w, s)
	w.stores = append(w.stores, s)
	return s
}

// Insert sets the component for e, replacing an existing one.
func (c *Components[T]) Insert(e Entity, value T) {
	if i, ok := c.index[e]; ok {
		c.values[i] = value
		return
	}
	c.index[e] = len(c.values)
	c.values = append(c.values, value)
	c.entities = append(c.entities, e)
}

// Get returns the component for e.
func (c *Components[T]) Get(e Entity) (T, bool) {
	i, ok := c.index[e]
	if !ok {
		var zero T
		return zero, false
	}
	return c.values[i], true
}

// Remove deletes the component for e and reports whether it existed.
func (c *Components[T]) Remove(e Entity) bool {
	return c.remove(e)
}

func (c *Components[T]) remove(e Entity) bool {
	i, ok := c.index[e]
	if !ok {
		return false
	}
	last := len(c.values) - 1
	if i != last {
		c.values[i] = c.values[last]
		c.entities[i] = c.entities[last]
		c.index[c.entities[i]] = i
	}
	var zero T
	c.values[last] = zero
	c.values = c.values[:last]
	c.entities = c.entities[:last]
	delete(c.index, e)
	return true
}

// Clear removes every component.
func (c *Components[T]) Clear() {
	clear(c.values)
	c.values = c.values[:0]
	c.entities = c.entities[:0]
	clear(c.index)
}

// Len returns the number of stored components.
func (c *Components[T]) Len() int {
	return len(c.values)
}

// Entities returns the entities holding a component, in ascending order.
func (c *Components[T]) Entities() []Entity {
	out := slices.Clone(c.entities)
	slices.Sort(out)
	return out
}

// Each calls fn for every component in ascending entity order.
func (c *Components[T]) Each(fn func(Entity, T)) {
	for _, e := range c.Entities() {
		fn(e, c.values[c.index[e]])
	}
}
