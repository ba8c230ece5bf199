// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// ExtractComponents mirrors every T of the main world into the render world.
//
// The render-world store is rebuilt from scratch, so components whose entity
// was despawned (or whose component was removed) in the main world disappear
// from the mirror on the next extraction. Entity ids are shared between the
// two worlds. Returns the number of extracted components.
func ExtractComponents[T any](main, renderWorld *World) int {
	src := ComponentsOf[T](main)
	dst := ComponentsOf[T](renderWorld)
	dst.Clear()
	src.Each(func(e Entity, v T) {
		if main.Contains(e) {
			dst.Insert(e, v)
		}
	})
	return dst.Len()
}

// ExtractComponentSystem returns an ExtractSystem running ExtractComponents[T].
func ExtractComponentSystem[T any]() ExtractSystem {
	return func(main, renderWorld *World) {
		ExtractComponents[T](main, renderWorld)
	}
}
