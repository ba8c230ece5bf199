// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TimeWrapPeriod is the period after which GlobalsUniform.Time wraps to
// zero, keeping float32 precision usable for animation.
const TimeWrapPeriod = time.Hour

// GlobalsUniform is the host-owned per-frame uniform shared by all effects.
//
// WGSL layout:
//
//	time        f32  @0
//	delta_time  f32  @4
//	frame_count u32  @8
//
// Native size is 12 bytes; LayoutWebGL2 rounds the struct to 16.
type GlobalsUniform struct {
	Time       float32
	DeltaTime  float32
	FrameCount uint32
}

const globalsPackedSize = 12

// UniformSize returns the encoded size for layout.
func (GlobalsUniform) UniformSize(layout UniformLayout) uint64 {
	if layout == LayoutWebGL2 {
		return AlignUp(globalsPackedSize, 16)
	}
	return globalsPackedSize
}

// AppendUniform appends the little-endian uniform image to dst.
func (g GlobalsUniform) AppendUniform(dst []byte, layout UniformLayout) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(g.Time))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(g.DeltaTime))
	dst = binary.LittleEndian.AppendUint32(dst, g.FrameCount)
	for n := g.UniformSize(layout) - globalsPackedSize; n > 0; n-- {
		dst = append(dst, 0)
	}
	return dst
}

// FrameTime is the host clock sampled once per frame.
type FrameTime struct {
	Elapsed time.Duration
	Delta   time.Duration
	Frame   uint32
}

// Globals converts the clock into the shader uniform.
func (f FrameTime) Globals() GlobalsUniform {
	return GlobalsUniform{
		Time:       float32((f.Elapsed % TimeWrapPeriod).Seconds()),
		DeltaTime:  float32(f.Delta.Seconds()),
		FrameCount: f.Frame,
	}
}

// GlobalsBuffer owns the GPU copy of GlobalsUniform.
type GlobalsBuffer struct {
	layout UniformLayout
	buffer hal.Buffer
	value  GlobalsUniform
	ready  bool
}

// NewGlobalsBuffer creates an empty globals buffer. Binding reports false
// until the first Prepare.
func NewGlobalsBuffer(layout UniformLayout) *GlobalsBuffer {
	return &GlobalsBuffer{layout: layout}
}

// Prepare uploads value, creating the buffer on first use.
func (g *GlobalsBuffer) Prepare(device hal.Device, write BufferWriter, value GlobalsUniform) error {
	if device == nil {
		return ErrNilDevice
	}
	size := value.UniformSize(g.layout)
	if g.buffer == nil {
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{
			Label: "globals_buffer",
			Size:  size,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create globals buffer: %w", err)
		}
		g.buffer = buf
	}
	write(g.buffer, 0, value.AppendUniform(make([]byte, 0, size), g.layout))
	g.value = value
	g.ready = true
	return nil
}

// Value returns the last uploaded uniform.
func (g *GlobalsBuffer) Value() GlobalsUniform { return g.value }

// Binding returns the whole buffer, or false before the first Prepare.
func (g *GlobalsBuffer) Binding() (BufferBinding, bool) {
	if !g.ready {
		return BufferBinding{}, false
	}
	return BufferBinding{Buffer: g.buffer, Size: GlobalsUniform{}.UniformSize(g.layout)}, true
}

// Destroy releases the buffer.
func (g *GlobalsBuffer) Destroy(device hal.Device) {
	if g.buffer != nil {
		device.DestroyBuffer(g.buffer)
		g.buffer = nil
	}
	g.ready = false
}
