package glitch

import "github.com/chewxy/math32"

// Mat3 is a 3x3 float32 matrix stored column-major: m[c][r] is the element
// in column c, row r. This matches WGSL mat3x3<f32>.
type Mat3 [3][3]float32

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Mat3FromCols builds a matrix from nine values listed column by column.
func Mat3FromCols(v [9]float32) Mat3 {
	return Mat3{
		{v[0], v[1], v[2]},
		{v[3], v[4], v[5]},
		{v[6], v[7], v[8]},
	}
}

// Mat3FromRows builds a matrix from nine values listed row by row.
func Mat3FromRows(v [9]float32) Mat3 {
	return Mat3{
		{v[0], v[3], v[6]},
		{v[1], v[4], v[7]},
		{v[2], v[5], v[8]},
	}
}

// At returns the element at row r, column c.
func (m Mat3) At(r, c int) float32 { return m[c][r] }

// IsDoublyStochastic reports whether every element is non-negative and every
// row and column sums to 1 within tol.
//
// The effect never enforces this; a matrix that is not doubly stochastic
// shifts overall brightness and hue.
func (m Mat3) IsDoublyStochastic(tol float32) bool {
	for c := range 3 {
		var col, row float32
		for r := range 3 {
			if m[c][r] < 0 {
				return false
			}
			col += m[c][r]
			row += m[r][c]
		}
		if math32.Abs(col-1) > tol || math32.Abs(row-1) > tol {
			return false
		}
	}
	return true
}

// Settings is the per-camera configuration of the video glitch effect.
//
// Attach it to a camera entity in the main world; it is mirrored into the
// render world every frame and uploaded as the effect's uniform.
type Settings struct {
	// Intensity scales the effect. It is meant to be in [0, 1] but is
	// neither clamped nor rejected: out-of-range values reach the shader as is.
	Intensity float32

	// ColorAberration mixes the displaced color channels. By convention it is
	// doubly stochastic; see [Mat3.IsDoublyStochastic].
	ColorAberration Mat3

	// WebGL2Padding is only written under render.LayoutWebGL2.
	WebGL2Padding [2]float32
}

// DefaultSettings returns full intensity with an identity aberration matrix.
func DefaultSettings() Settings {
	return Settings{
		Intensity:       1,
		ColorAberration: Identity3(),
	}
}
