package glitch

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glitch/render"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.layout != nil {
		t.Error("default layout should follow the app")
	}
	if o.format != gputypes.TextureFormatUndefined {
		t.Errorf("default format = %v, want undefined", o.format)
	}
	if o.source != videoGlitchShaderSource {
		t.Error("default source should be the embedded shader")
	}
	if o.compiler != nil || o.provider != nil {
		t.Error("default compiler and provider should be nil")
	}
}

func TestPluginOptions(t *testing.T) {
	called := false
	compiler := func(render.Shader) (hal.ShaderSource, error) {
		called = true
		return hal.ShaderSource{}, nil
	}
	provider := render.NullDeviceHandle{}

	p := NewPlugin(
		WithUniformLayout(render.LayoutWebGL2),
		WithTargetFormat(gputypes.TextureFormatRGBA8Unorm),
		WithDeviceProvider(provider),
		WithShaderCompiler(compiler),
		WithShaderSource("@fragment fn fragment() {}"),
	)

	if p.opts.layout == nil || *p.opts.layout != render.LayoutWebGL2 {
		t.Errorf("layout = %v, want webgl2", p.opts.layout)
	}
	if p.opts.format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v", p.opts.format)
	}
	if p.opts.provider == nil {
		t.Error("provider not set")
	}
	if p.opts.source != "@fragment fn fragment() {}" {
		t.Errorf("source = %q", p.opts.source)
	}
	if _, err := p.opts.compiler(render.Shader{}); err != nil || !called {
		t.Error("compiler option not stored")
	}
}

func TestWithShaderSourceIgnoresEmpty(t *testing.T) {
	p := NewPlugin(WithShaderSource(""))
	if p.opts.source != videoGlitchShaderSource {
		t.Error("empty source must keep the embedded shader")
	}
}
