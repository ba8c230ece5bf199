// Package shader compiles WGSL sources to SPIR-V for the HAL.
package shader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ErrEmptySource is returned when compiling an empty WGSL source.
var ErrEmptySource = errors.New("shader: WGSL source is empty")

// CompileWGSL compiles WGSL source to SPIR-V words.
// SPIR-V produced by naga is little-endian 32-bit words.
func CompileWGSL(source string) ([]uint32, error) {
	if source == "" {
		return nil, ErrEmptySource
	}

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile WGSL: %w", err)
	}
	return Words(spirvBytes)
}

// Words converts a SPIR-V byte stream into words and checks the magic number.
func Words(spirvBytes []byte) ([]uint32, error) {
	if len(spirvBytes) < 4 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("shader: invalid SPIR-V length %d", len(spirvBytes))
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("shader: invalid SPIR-V magic 0x%08X", words[0])
	}
	return words, nil
}
