// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MinUniformBufferOffsetAlignment is the offset alignment for uniform
// bindings inside a shared buffer.
const MinUniformBufferOffsetAlignment = 256

// UniformLayout selects the alignment rules of the target backend.
type UniformLayout uint8

const (
	// LayoutNative is the std140-like layout of native backends.
	LayoutNative UniformLayout = iota

	// LayoutWebGL2 adds the explicit padding WebGL2 requires, with struct
	// sizes rounded to 16 bytes.
	LayoutWebGL2
)

// String returns the layout name.
func (l UniformLayout) String() string {
	switch l {
	case LayoutNative:
		return "native"
	case LayoutWebGL2:
		return "webgl2"
	default:
		return fmt.Sprintf("UniformLayout(%d)", uint8(l))
	}
}

// UniformEncoder is implemented by values that can be written into a
// uniform buffer. The size must not depend on the value.
type UniformEncoder interface {
	// UniformSize returns the byte size of the uniform image for layout.
	UniformSize(layout UniformLayout) uint64

	// AppendUniform appends the uniform image for layout to dst.
	AppendUniform(dst []byte, layout UniformLayout) []byte
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// BufferBinding is a byte range of a uniform buffer.
type BufferBinding struct {
	Buffer hal.Buffer
	Offset uint64
	Size   uint64
}

// Entry returns the bind group entry for this range at binding.
func (b BufferBinding) Entry(binding uint32) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: b.Buffer.NativeHandle(),
			Offset: b.Offset,
			Size:   b.Size,
		},
	}
}

// ComponentUniforms packs one uniform per entity into a shared buffer.
//
// Prepare runs once per frame: every extracted value is encoded at an
// offset aligned to [MinUniformBufferOffsetAlignment] and the whole image is
// uploaded in one write. The buffer is recreated only when it is too small.
type ComponentUniforms[T UniformEncoder] struct {
	label  string
	layout UniformLayout

	buffer   hal.Buffer
	capacity uint64
	offsets  map[Entity]uint64
	scratch  []byte
}

// NewComponentUniforms creates an empty uniform set.
func NewComponentUniforms[T UniformEncoder](label string, layout UniformLayout) *ComponentUniforms[T] {
	return &ComponentUniforms[T]{
		label:   label,
		layout:  layout,
		offsets: make(map[Entity]uint64),
	}
}

// Layout returns the uniform layout values are encoded with.
func (u *ComponentUniforms[T]) Layout() UniformLayout { return u.layout }

// ItemSize returns the encoded size of one value.
func (u *ComponentUniforms[T]) ItemSize() uint64 {
	var zero T
	return zero.UniformSize(u.layout)
}

// Stride returns the distance between consecutive values in the buffer.
func (u *ComponentUniforms[T]) Stride() uint64 {
	return AlignUp(u.ItemSize(), MinUniformBufferOffsetAlignment)
}

// Prepare encodes every component of comps and uploads the result.
// With no components the previous bindings are dropped and nothing is
// written.
func (u *ComponentUniforms[T]) Prepare(device hal.Device, write BufferWriter, comps *Components[T]) error {
	clear(u.offsets)
	if comps == nil || comps.Len() == 0 {
		return nil
	}
	if device == nil {
		return ErrNilDevice
	}

	itemSize := u.ItemSize()
	stride := u.Stride()
	total := stride * uint64(comps.Len())

	u.scratch = u.scratch[:0]
	var offset uint64
	comps.Each(func(e Entity, v T) {
		u.scratch = v.AppendUniform(u.scratch, u.layout)
		if n := uint64(len(u.scratch)) - offset; n != itemSize {
			panic(fmt.Sprintf("render: %T encoded %d bytes, want %d", v, n, itemSize))
		}
		u.offsets[e] = offset
		offset += stride
		for uint64(len(u.scratch)) < offset {
			u.scratch = append(u.scratch, 0)
		}
	})

	if err := u.ensureCapacity(device, total); err != nil {
		clear(u.offsets)
		return err
	}
	write(u.buffer, 0, u.scratch[:total])
	return nil
}

func (u *ComponentUniforms[T]) ensureCapacity(device hal.Device, size uint64) error {
	if u.buffer != nil && u.capacity >= size {
		return nil
	}
	if u.buffer != nil {
		device.DestroyBuffer(u.buffer)
		u.buffer = nil
		u.capacity = 0
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: u.label,
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s buffer: %w", u.label, err)
	}
	Logger().Debug("uniform buffer grown", "label", u.label, "size", size)
	u.buffer = buf
	u.capacity = size
	return nil
}

// Binding returns the uniform range of entity e from the last Prepare.
func (u *ComponentUniforms[T]) Binding(e Entity) (BufferBinding, bool) {
	off, ok := u.offsets[e]
	if !ok || u.buffer == nil {
		return BufferBinding{}, false
	}
	return BufferBinding{Buffer: u.buffer, Offset: off, Size: u.ItemSize()}, true
}

// Len returns the number of bindings from the last Prepare.
func (u *ComponentUniforms[T]) Len() int { return len(u.offsets) }

// Capacity returns the current buffer size in bytes.
func (u *ComponentUniforms[T]) Capacity() uint64 { return u.capacity }

// Destroy releases the buffer.
func (u *ComponentUniforms[T]) Destroy(device hal.Device) {
	if u.buffer != nil {
		device.DestroyBuffer(u.buffer)
		u.buffer = nil
	}
	u.capacity = 0
	clear(u.offsets)
}
