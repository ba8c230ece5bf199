package glitch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/glitch/render"
)

// ErrUniformSize is returned when decoding a buffer of the wrong length.
var ErrUniformSize = errors.New("glitch: uniform size mismatch")

// Settings uniform layout, matching the WGSL struct:
//
//	intensity         f32          @0
//	color_aberration  mat3x3<f32>  @16 (columns @16, @32, @48, 16-byte stride)
//	_webgl2_padding   vec2<f32>    @64 (LayoutWebGL2 only)
//
// Native size is 64 bytes. WebGL2 size is 72 rounded up to 16 = 80 bytes.
const (
	settingsMatrixOffset = 16
	settingsColumnStride = 16
	settingsPaddingOff   = 64

	// SettingsSizeNative is the uniform size under render.LayoutNative.
	SettingsSizeNative = 64

	// SettingsSizeWebGL2 is the uniform size under render.LayoutWebGL2.
	SettingsSizeWebGL2 = 80
)

// UniformSize returns the encoded size for layout.
func (Settings) UniformSize(layout render.UniformLayout) uint64 {
	if layout == render.LayoutWebGL2 {
		return SettingsSizeWebGL2
	}
	return SettingsSizeNative
}

// AppendUniform appends the little-endian uniform image of s to dst.
// All padding bytes are zero.
func (s Settings) AppendUniform(dst []byte, layout render.UniformLayout) []byte {
	size := int(s.UniformSize(layout))
	start := len(dst)
	dst = append(dst, make([]byte, size)...)
	buf := dst[start:]

	putFloat32(buf[0:], s.Intensity)
	for c := range 3 {
		off := settingsMatrixOffset + c*settingsColumnStride
		for r := range 3 {
			putFloat32(buf[off+r*4:], s.ColorAberration[c][r])
		}
	}
	if layout == render.LayoutWebGL2 {
		putFloat32(buf[settingsPaddingOff:], s.WebGL2Padding[0])
		putFloat32(buf[settingsPaddingOff+4:], s.WebGL2Padding[1])
	}
	return dst
}

// UniformBytes returns the uniform image of s for layout.
func (s Settings) UniformBytes(layout render.UniformLayout) []byte {
	return s.AppendUniform(make([]byte, 0, s.UniformSize(layout)), layout)
}

// DecodeSettings parses a uniform image produced by AppendUniform.
func DecodeSettings(b []byte, layout render.UniformLayout) (Settings, error) {
	var s Settings
	if want := s.UniformSize(layout); uint64(len(b)) != want {
		return Settings{}, fmt.Errorf("%w: got %d bytes, want %d for %s layout", ErrUniformSize, len(b), want, layout)
	}
	s.Intensity = getFloat32(b[0:])
	for c := range 3 {
		off := settingsMatrixOffset + c*settingsColumnStride
		for r := range 3 {
			s.ColorAberration[c][r] = getFloat32(b[off+r*4:])
		}
	}
	if layout == render.LayoutWebGL2 {
		s.WebGL2Padding[0] = getFloat32(b[settingsPaddingOff:])
		s.WebGL2Padding[1] = getFloat32(b[settingsPaddingOff+4:])
	}
	return s, nil
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

var _ render.UniformEncoder = Settings{}
