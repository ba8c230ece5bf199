package glitch

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glitch/render"
)

// NodeLabel is the graph label of the effect node in Core3d and Core2d.
const NodeLabel render.Label = "video_glitch"

// Node applies the effect to one view per call.
//
// It holds no state between calls. Everything it needs is read from the
// render world: the Pipeline, the PipelineCache, the settings uniforms and
// the globals buffer.
type Node struct{}

// Run records the effect for view.
//
// While the pipeline is still compiling, or the view has no settings, or
// globals were not uploaded yet, Run returns nil without touching the view
// target. Only a failure to create the bind group is reported, and the view
// target is left unflipped in that case. The bind group is owned by ctx.
func (Node) Run(ctx render.RenderContext, world *render.World, view *render.ExtractedView) error {
	log := Logger()

	pipeline, ok := render.Resource[*Pipeline](world)
	if !ok {
		log.Debug("video glitch: pipeline resource missing", "view", view.Entity)
		return nil
	}
	cache, ok := render.Resource[*render.PipelineCache](world)
	if !ok {
		return nil
	}
	renderPipeline, ok := cache.GetRenderPipeline(pipeline.ID())
	if !ok {
		log.Debug("video glitch: pipeline not ready", "view", view.Entity)
		return nil
	}

	uniforms, ok := render.Resource[*render.ComponentUniforms[Settings]](world)
	if !ok {
		return nil
	}
	settingsBinding, ok := uniforms.Binding(view.Entity)
	if !ok {
		log.Debug("video glitch: no settings for view", "view", view.Entity)
		return nil
	}

	globals, ok := render.Resource[*render.GlobalsBuffer](world)
	if !ok {
		return nil
	}
	globalsBinding, ok := globals.Binding()
	if !ok {
		log.Debug("video glitch: globals not uploaded", "view", view.Entity)
		return nil
	}

	if view.Target == nil {
		return nil
	}
	// Flip only after the bind group exists.
	source := view.Target.MainTextureView()

	bindGroup, err := ctx.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "video_glitch_bind_group",
		Layout: pipeline.BindGroupLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingSource, Resource: gputypes.TextureViewBinding{
				TextureView: source.NativeHandle(),
			}},
			{Binding: bindingSampler, Resource: gputypes.SamplerBinding{
				Sampler: pipeline.Sampler().NativeHandle(),
			}},
			settingsBinding.Entry(bindingSettings),
			globalsBinding.Entry(bindingGlobals),
		},
	})
	if err != nil {
		return fmt.Errorf("create video glitch bind group: %w", err)
	}
	ctx.TrackBindGroup(bindGroup)

	// Destination must be fully written below.
	post := view.Target.PostProcessWrite()

	pass := ctx.BeginTrackedRenderPass(&hal.RenderPassDescriptor{
		Label: "video_glitch_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    post.Destination,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	pass.SetPipeline(renderPipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	return nil
}

var _ render.ViewNode = Node{}
