package glitch

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/glitch/render"
)

// PluginOption configures a Plugin during creation.
// Use functional options to customize Plugin behavior.
//
// Example:
//
//	// Defaults: app uniform layout, host surface format, embedded shader
//	p := glitch.NewPlugin()
//
//	// WebGL2 host rendering to an RGBA target
//	p := glitch.NewPlugin(
//	    glitch.WithUniformLayout(render.LayoutWebGL2),
//	    glitch.WithTargetFormat(gputypes.TextureFormatRGBA8Unorm),
//	)
type PluginOption func(*pluginOptions)

// pluginOptions holds optional configuration for Plugin creation.
type pluginOptions struct {
	layout   *render.UniformLayout
	format   gputypes.TextureFormat
	provider render.DeviceHandle
	compiler render.ShaderCompiler
	source   string
}

// defaultOptions returns the default plugin options.
func defaultOptions() pluginOptions {
	return pluginOptions{
		format: gputypes.TextureFormatUndefined, // resolved from the provider
		source: videoGlitchShaderSource,
	}
}

// WithUniformLayout forces the uniform layout of the settings record.
// By default the App's layout is used; a different layout makes Finish fail
// with ErrLayoutMismatch because the host globals would no longer match.
func WithUniformLayout(l render.UniformLayout) PluginOption {
	return func(o *pluginOptions) {
		o.layout = &l
	}
}

// WithTargetFormat sets the color target format of the effect pipeline.
// By default the surface format of the device provider is used.
func WithTargetFormat(f gputypes.TextureFormat) PluginOption {
	return func(o *pluginOptions) {
		o.format = f
	}
}

// WithDeviceProvider sets the provider queried for the surface format.
// By default the App's provider is used.
func WithDeviceProvider(p render.DeviceHandle) PluginOption {
	return func(o *pluginOptions) {
		o.provider = p
	}
}

// WithShaderCompiler sets the compiler used for the effect shader only.
// By default the pipeline cache compiler (naga SPIR-V) is used.
func WithShaderCompiler(c render.ShaderCompiler) PluginOption {
	return func(o *pluginOptions) {
		o.compiler = c
	}
}

// WithShaderSource replaces the embedded effect shader. The replacement must
// declare the same four bindings and a "fragment" entry point.
func WithShaderSource(wgsl string) PluginOption {
	return func(o *pluginOptions) {
		if wgsl != "" {
			o.source = wgsl
		}
	}
}
