package glitch

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glitch/render"
)

// Setup errors.
var (
	// ErrNilDevice is returned when building the pipeline without a device.
	ErrNilDevice = errors.New("glitch: device is nil")

	// ErrNilPipelineCache is returned when building the pipeline without a cache.
	ErrNilPipelineCache = errors.New("glitch: pipeline cache is nil")

	// ErrLayoutMismatch is returned when the uniform sizes supplied by the
	// host do not match the shader structs for the configured layout.
	ErrLayoutMismatch = errors.New("glitch: uniform layout mismatch")

	// ErrNotBuilt is returned by Plugin.Finish when Build did not run.
	ErrNotBuilt = errors.New("glitch: plugin not built")
)

// Bind group layout slots. The order is fixed and shared with the shader.
const (
	bindingSource   = 0
	bindingSampler  = 1
	bindingSettings = 2
	bindingGlobals  = 3
)

// PipelineConfig configures NewPipeline.
type PipelineConfig struct {
	// Layout is the uniform layout the shader was specialised for.
	Layout render.UniformLayout

	// TargetFormat is the view format. Undefined selects
	// render.DefaultTargetFormat.
	TargetFormat gputypes.TextureFormat

	// SettingsSize is the byte size of each settings binding the host will
	// supply. Zero means the size implied by Layout.
	SettingsSize uint64

	// GlobalsSize is the byte size of the globals binding the host will
	// supply. Zero means the size implied by Layout.
	GlobalsSize uint64
}

// Pipeline holds the long-lived GPU objects of the effect: the bind group
// layout, the sampler and the id of the cached render pipeline.
//
// It is created once and never mutated; nodes only read it.
type Pipeline struct {
	layout     hal.BindGroupLayout
	sampler    hal.Sampler
	id         render.CachedPipelineID
	uniforms   render.UniformLayout
	format     gputypes.TextureFormat
	settingsSz uint64
	globalsSz  uint64
}

// NewPipeline creates the bind group layout and sampler on device and
// queues the render pipeline in cache. The pipeline compiles on the next
// cache.ProcessQueue.
func NewPipeline(device hal.Device, cache *render.PipelineCache, cfg PipelineConfig) (*Pipeline, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if cache == nil {
		return nil, ErrNilPipelineCache
	}

	settingsSize := Settings{}.UniformSize(cfg.Layout)
	globalsSize := render.GlobalsUniform{}.UniformSize(cfg.Layout)
	if cfg.SettingsSize != 0 && cfg.SettingsSize != settingsSize {
		return nil, fmt.Errorf("%w: settings binding is %d bytes, shader expects %d (%s)",
			ErrLayoutMismatch, cfg.SettingsSize, settingsSize, cfg.Layout)
	}
	if cfg.GlobalsSize != 0 && cfg.GlobalsSize != globalsSize {
		return nil, fmt.Errorf("%w: globals binding is %d bytes, shader expects %d (%s)",
			ErrLayoutMismatch, cfg.GlobalsSize, globalsSize, cfg.Layout)
	}

	format := cfg.TargetFormat
	if format == gputypes.TextureFormatUndefined {
		format = render.DefaultTargetFormat
	}

	p := &Pipeline{
		uniforms:   cfg.Layout,
		format:     format,
		settingsSz: settingsSize,
		globalsSz:  globalsSize,
	}

	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "video_glitch_bind_group_layout",
		Entries: bindGroupLayoutEntries(settingsSize, globalsSize),
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	p.layout = layout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "video_glitch_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		p.Destroy(device)
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	p.sampler = sampler

	id, err := cache.QueueRenderPipeline(p.descriptor())
	if err != nil {
		p.Destroy(device)
		return nil, fmt.Errorf("queue render pipeline: %w", err)
	}
	p.id = id

	Logger().Debug("video glitch pipeline queued",
		"id", id, "layout", cfg.Layout.String(), "format", format)
	return p, nil
}

// bindGroupLayoutEntries returns the four fragment-only bindings in slot
// order: source texture, sampler, settings uniform, globals uniform.
func bindGroupLayoutEntries(settingsSize, globalsSize uint64) []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		{
			Binding:    bindingSource,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		},
		{
			Binding:    bindingSampler,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
		{
			Binding:    bindingSettings,
			Visibility: gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: settingsSize,
			},
		},
		{
			Binding:    bindingGlobals,
			Visibility: gputypes.ShaderStageFragment,
			Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: globalsSize,
			},
		},
	}
}

// descriptor returns the cached pipeline descriptor: full-screen triangle,
// effect fragment shader, one color target without blending.
func (p *Pipeline) descriptor() *render.RenderPipelineDescriptor {
	return &render.RenderPipelineDescriptor{
		Label:  "video_glitch_pipeline",
		Layout: []hal.BindGroupLayout{p.layout},
		Vertex: render.FullscreenVertexState(),
		Fragment: &render.FragmentState{
			Shader:     ShaderHandle,
			EntryPoint: FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    p.format,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
}

// ID returns the cached pipeline id.
func (p *Pipeline) ID() render.CachedPipelineID { return p.id }

// BindGroupLayout returns the effect's bind group layout.
func (p *Pipeline) BindGroupLayout() hal.BindGroupLayout { return p.layout }

// Sampler returns the sampler used for the source texture.
func (p *Pipeline) Sampler() hal.Sampler { return p.sampler }

// UniformLayout returns the layout the pipeline was built for.
func (p *Pipeline) UniformLayout() render.UniformLayout { return p.uniforms }

// TargetFormat returns the color target format.
func (p *Pipeline) TargetFormat() gputypes.TextureFormat { return p.format }

// BindingSizes returns the minimum binding sizes of the settings and
// globals uniforms.
func (p *Pipeline) BindingSizes() (settings, globals uint64) {
	return p.settingsSz, p.globalsSz
}

// Destroy releases the sampler and bind group layout. The cached render
// pipeline belongs to the cache.
func (p *Pipeline) Destroy(device hal.Device) {
	if p.sampler != nil {
		device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.layout != nil {
		device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
}
