// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render provides the host-side frame graph contracts consumed by
// post-process effects.
//
// The effect never owns a GPU device, a window or a scheduler. The host hands
// it a device (see [DeviceHandle] and [HAL]) and drives it through:
//
//   - [World]: entity-keyed component stores plus typed resources
//   - [ExtractComponents]: copies main-world components into the render world
//   - [ComponentUniforms] and [GlobalsBuffer]: per-frame uniform upload
//   - [PipelineCache]: descriptor-keyed render pipeline cache
//   - [Graph]: named sub-graphs with explicit ordering edges
//   - [ViewTarget]: double-buffered main textures with source/destination flips
//
// # Frame Flow
//
//	main world ─extract─▶ render world ─prepare─▶ uniform buffers
//	                                   └─ProcessQueue─▶ compiled pipelines
//	Graph.RunView(Core3d, ctx, world, view) ─▶ ViewNode.Run per view
//
// Bind groups a node creates for one frame are handed to the
// [RenderContext]. [CommandContext.Submit] destroys them after the GPU has
// executed the frame; [CommandContext.Discard] does so for abandoned frames.
//
// # Sub-graphs
//
// Two sub-graphs are predeclared, [Core3d] and [Core2d], with their stage
// labels ([Node3dTonemapping], [Node2dEndMainPass], ...). Stages without a
// registered node are pure ordering markers.
//
// # Thread Safety
//
// [PipelineCache] is safe for concurrent use. [World], [Graph] and
// [ViewTarget] are owned by the render thread and are not synchronized.
package render
