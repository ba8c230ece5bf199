package glitch

import (
	_ "embed"
	"strings"

	"github.com/gogpu/glitch/render"
)

// Embedded video glitch fragment shader.
//
//go:embed shaders/video_glitch.wgsl
var videoGlitchShaderSource string

// ShaderHandle is the registry handle of the effect shader.
const ShaderHandle render.ShaderHandle = 0x7b1d_5819_7dc3_4e26

// FragmentEntryPoint is the effect shader's fragment entry point.
const FragmentEntryPoint = "fragment"

// Padding markers in the shader source, filled in for LayoutWebGL2.
const (
	settingsPaddingMarker = "// #webgl2_settings_padding"
	globalsPaddingMarker  = "// #webgl2_globals_padding"
)

// ShaderSource returns the effect shader specialised for layout.
// Under LayoutWebGL2 the uniform structs gain their explicit padding fields so
// that the shader structs match Settings and render.GlobalsUniform byte for byte.
func ShaderSource(layout render.UniformLayout) string {
	return specialise(videoGlitchShaderSource, layout)
}

func specialise(src string, layout render.UniformLayout) string {
	if layout != render.LayoutWebGL2 {
		return src
	}
	r := strings.NewReplacer(
		settingsPaddingMarker, "_webgl2_padding: vec2<f32>,",
		globalsPaddingMarker, "_webgl2_padding: f32,",
	)
	return r.Replace(src)
}
