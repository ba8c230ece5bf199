// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/glitch/internal/shader"
)

// Embedded full-screen triangle vertex shader.
//
//go:embed shaders/fullscreen.wgsl
var fullscreenShaderSource string

// ShaderHandle names a shader in a [Shaders] registry. Handles are chosen
// by the registering plugin and are stable across runs.
type ShaderHandle uint64

// FullscreenShaderHandle is the shared full-screen triangle vertex shader.
const FullscreenShaderHandle ShaderHandle = 0x3c4d_8a16_f1e2_0b57

// FullscreenEntryPoint is the vertex entry point of the full-screen shader.
const FullscreenEntryPoint = "fullscreen_vertex_shader"

// ErrEmptyShader is returned when registering a shader with no source.
var ErrEmptyShader = errors.New("render: shader source is empty")

// Shader is a registered WGSL source.
type Shader struct {
	Label string
	WGSL  string

	// Compiler overrides the pipeline cache compiler for this shader.
	Compiler ShaderCompiler
}

// Shaders is a registry of WGSL sources keyed by handle.
// It is safe for concurrent use.
type Shaders struct {
	mu      sync.RWMutex
	sources map[ShaderHandle]Shader
}

// NewShaders creates a registry holding the full-screen vertex shader.
func NewShaders() *Shaders {
	s := &Shaders{sources: make(map[ShaderHandle]Shader)}
	s.sources[FullscreenShaderHandle] = Shader{Label: "fullscreen_vertex_shader", WGSL: fullscreenShaderSource}
	return s
}

// Add registers sh under handle, replacing any previous shader.
func (s *Shaders) Add(handle ShaderHandle, sh Shader) error {
	if sh.WGSL == "" {
		return fmt.Errorf("%w: %s", ErrEmptyShader, sh.Label)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[handle] = sh
	return nil
}

// Get returns the shader registered under handle.
func (s *Shaders) Get(handle ShaderHandle) (Shader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.sources[handle]
	return sh, ok
}

// Remove unregisters handle.
func (s *Shaders) Remove(handle ShaderHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, handle)
}

// ShaderCompiler turns WGSL into the source handed to CreateShaderModule.
type ShaderCompiler func(sh Shader) (hal.ShaderSource, error)

// SPIRVCompiler compiles WGSL to SPIR-V with naga before module creation.
func SPIRVCompiler(sh Shader) (hal.ShaderSource, error) {
	spirv, err := shader.CompileWGSL(sh.WGSL)
	if err != nil {
		return hal.ShaderSource{}, fmt.Errorf("%s: %w", sh.Label, err)
	}
	return hal.ShaderSource{SPIRV: spirv}, nil
}

// WGSLCompiler passes WGSL through to the backend unchanged.
func WGSLCompiler(sh Shader) (hal.ShaderSource, error) {
	if sh.WGSL == "" {
		return hal.ShaderSource{}, fmt.Errorf("%w: %s", ErrEmptyShader, sh.Label)
	}
	return hal.ShaderSource{WGSL: sh.WGSL}, nil
}

// FullscreenVertexState returns the vertex stage of the shared full-screen
// triangle. It uses no vertex buffers; draw it with Draw(3, 1, 0, 0).
func FullscreenVertexState() VertexState {
	return VertexState{Shader: FullscreenShaderHandle, EntryPoint: FullscreenEntryPoint}
}
