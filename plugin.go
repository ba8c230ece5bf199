package glitch

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/glitch/render"
)

// settingsUniformsLabel labels the shared settings uniform buffer.
const settingsUniformsLabel = "video_glitch_settings"

// Plugin wires the video glitch effect into a render.App.
//
// Build registers the shader, the Settings extraction, the per-camera
// uniform upload and the graph node:
//
//	Core3d: Tonemapping -> video_glitch -> EndMainPassPostProcessing
//	Core2d: EndMainPass -> video_glitch -> Tonemapping
//
// Finish creates the Pipeline resource once the device is available.
type Plugin struct {
	opts pluginOptions
}

// NewPlugin creates the plugin with the given options.
func NewPlugin(opts ...PluginOption) *Plugin {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Plugin{opts: o}
}

// layout returns the uniform layout the plugin encodes settings with.
func (p *Plugin) layout(app *render.App) render.UniformLayout {
	if p.opts.layout != nil {
		return *p.opts.layout
	}
	return app.Layout
}

// Build registers shader, extraction, uniform preparation and graph nodes.
func (p *Plugin) Build(app *render.App) error {
	layout := p.layout(app)

	if err := app.Shaders.Add(ShaderHandle, render.Shader{
		Label:    "video_glitch",
		WGSL:     specialise(p.opts.source, layout),
		Compiler: p.opts.compiler,
	}); err != nil {
		return fmt.Errorf("register shader: %w", err)
	}

	app.AddExtractSystem(render.ExtractComponentSystem[Settings]())

	uniforms := render.NewComponentUniforms[Settings](settingsUniformsLabel, layout)
	render.InsertResource(app.RenderWorld, uniforms)
	app.AddPrepareSystem(func(a *render.App) error {
		return uniforms.Prepare(a.Device, a.Write, render.ComponentsOf[Settings](a.RenderWorld))
	})

	if err := app.Graph.AddNode(render.Core3d, NodeLabel, Node{}); err != nil {
		return err
	}
	if err := app.Graph.AddEdges(render.Core3d,
		render.Node3dTonemapping, NodeLabel, render.Node3dEndMainPassPostProcessing); err != nil {
		return err
	}
	if err := app.Graph.AddNode(render.Core2d, NodeLabel, Node{}); err != nil {
		return err
	}
	return app.Graph.AddEdges(render.Core2d,
		render.Node2dEndMainPass, NodeLabel, render.Node2dTonemapping)
}

// Finish builds the Pipeline and stores it in the render world.
func (p *Plugin) Finish(app *render.App) error {
	uniforms, ok := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld)
	if !ok {
		return ErrNotBuilt
	}

	pipeline, err := NewPipeline(app.Device, app.Pipelines, PipelineConfig{
		Layout:       uniforms.Layout(),
		TargetFormat: p.targetFormat(app),
		SettingsSize: uniforms.ItemSize(),
		GlobalsSize:  render.GlobalsUniform{}.UniformSize(app.Layout),
	})
	if err != nil {
		return err
	}
	render.InsertResource(app.RenderWorld, pipeline)
	return nil
}

func (p *Plugin) targetFormat(app *render.App) gputypes.TextureFormat {
	if p.opts.format != gputypes.TextureFormatUndefined {
		return p.opts.format
	}
	if p.opts.provider != nil {
		return render.SurfaceFormat(p.opts.provider)
	}
	return render.SurfaceFormat(app.Provider)
}

// Destroy releases the Pipeline resource, if any.
func (p *Plugin) Destroy(app *render.App) {
	if pipeline, ok := render.Resource[*Pipeline](app.RenderWorld); ok {
		pipeline.Destroy(app.Device)
		render.RemoveResource[*Pipeline](app.RenderWorld)
	}
	if uniforms, ok := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld); ok {
		uniforms.Destroy(app.Device)
	}
}

var _ render.Plugin = (*Plugin)(nil)
