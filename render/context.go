// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// ErrContextFinished is returned when using a RenderContext after Finish.
var ErrContextFinished = errors.New("render: context already finished")

// TrackedRenderPass is a render pass that skips redundant state changes.
type TrackedRenderPass interface {
	SetPipeline(pipeline hal.RenderPipeline)
	SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End()
}

// RenderContext is what a graph node records into.
type RenderContext interface {
	// Device returns the device used for transient resources.
	Device() hal.Device

	// BeginTrackedRenderPass starts a render pass on the frame's encoder.
	BeginTrackedRenderPass(desc *hal.RenderPassDescriptor) TrackedRenderPass

	// TrackBindGroup hands a per-frame bind group to the context. It stays
	// alive until the frame's command buffer has executed or was discarded.
	TrackBindGroup(group hal.BindGroup)
}

// maxTrackedBindGroups is the number of bind group slots tracked per pass.
const maxTrackedBindGroups = 4

// trackedPass wraps a hal.RenderPassEncoder and drops calls that would not
// change state.
type trackedPass struct {
	pass     hal.RenderPassEncoder
	pipeline hal.RenderPipeline
	groups   [maxTrackedBindGroups]hal.BindGroup
	ended    bool
}

// NewTrackedRenderPass wraps an open HAL render pass.
func NewTrackedRenderPass(pass hal.RenderPassEncoder) TrackedRenderPass {
	return &trackedPass{pass: pass}
}

func (p *trackedPass) SetPipeline(pipeline hal.RenderPipeline) {
	if p.ended || (p.pipeline != nil && p.pipeline == pipeline) {
		return
	}
	p.pipeline = pipeline
	p.pass.SetPipeline(pipeline)
}

func (p *trackedPass) SetBindGroup(index uint32, group hal.BindGroup, dynamicOffsets []uint32) {
	if p.ended {
		return
	}
	if index < maxTrackedBindGroups && len(dynamicOffsets) == 0 {
		if p.groups[index] != nil && p.groups[index] == group {
			return
		}
		p.groups[index] = group
	}
	p.pass.SetBindGroup(index, group, dynamicOffsets)
}

func (p *trackedPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.ended {
		return
	}
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *trackedPass) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.pass.End()
}

// CommandContext records graph nodes into a single HAL command encoder.
//
// Bind groups handed to TrackBindGroup are destroyed by Release, Submit or
// Discard, never while the command buffer may still reference them.
type CommandContext struct {
	device     hal.Device
	encoder    hal.CommandEncoder
	passes     int
	finished   bool
	bindGroups []hal.BindGroup
}

// NewCommandContext creates a command encoder and begins encoding.
func NewCommandContext(device hal.Device, label string) (*CommandContext, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &CommandContext{device: device, encoder: encoder}, nil
}

// Device returns the device the context was created on.
func (c *CommandContext) Device() hal.Device { return c.device }

// BeginTrackedRenderPass starts a render pass on the context's encoder.
func (c *CommandContext) BeginTrackedRenderPass(desc *hal.RenderPassDescriptor) TrackedRenderPass {
	c.passes++
	return NewTrackedRenderPass(c.encoder.BeginRenderPass(desc))
}

// TrackBindGroup keeps group until Release, Submit or Discard.
func (c *CommandContext) TrackBindGroup(group hal.BindGroup) {
	if group != nil {
		c.bindGroups = append(c.bindGroups, group)
	}
}

// Passes returns the number of render passes begun so far.
func (c *CommandContext) Passes() int { return c.passes }

// Finish ends encoding and returns the command buffer.
func (c *CommandContext) Finish() (hal.CommandBuffer, error) {
	if c.finished {
		return nil, ErrContextFinished
	}
	c.finished = true
	cmdBuf, err := c.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmdBuf, nil
}

// Submit finishes encoding, submits the command buffer on queue and waits
// for it. Tracked bind groups are released afterwards in all cases.
func (c *CommandContext) Submit(queue hal.Queue) error {
	defer c.Release()
	cmdBuf, err := c.Finish()
	if err != nil {
		return err
	}
	return Submit(c.device, queue, cmdBuf)
}

// Release destroys the tracked bind groups. Hosts that submit the buffer
// returned by Finish themselves call it once that buffer has executed.
func (c *CommandContext) Release() {
	for _, g := range c.bindGroups {
		c.device.DestroyBindGroup(g)
	}
	c.bindGroups = nil
}

// Discard abandons everything recorded so far and releases tracked bind
// groups. The encoder is left alone when Finish already ended it.
func (c *CommandContext) Discard() {
	defer c.Release()
	if c.finished {
		return
	}
	c.finished = true
	c.encoder.DiscardEncoding()
}

var _ RenderContext = (*CommandContext)(nil)
