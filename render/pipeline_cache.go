// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pipeline cache errors.
var (
	// ErrPipelineCacheNilDescriptor is returned when queueing a nil descriptor.
	ErrPipelineCacheNilDescriptor = errors.New("render: pipeline descriptor is nil")

	// ErrShaderNotRegistered is recorded while a pipeline waits for a shader.
	ErrShaderNotRegistered = errors.New("render: shader not registered")
)

// CachedPipelineID identifies a pipeline queued in a [PipelineCache].
type CachedPipelineID uint32

// PipelineState is the compilation state of a cached pipeline.
type PipelineState uint8

const (
	// PipelineQueued means the pipeline waits for ProcessQueue or a shader.
	PipelineQueued PipelineState = iota

	// PipelineReady means the pipeline compiled and can be used.
	PipelineReady

	// PipelineError means compilation failed. The pipeline is never retried.
	PipelineError
)

// String returns the state name.
func (s PipelineState) String() string {
	switch s {
	case PipelineQueued:
		return "queued"
	case PipelineReady:
		return "ready"
	case PipelineError:
		return "error"
	default:
		return fmt.Sprintf("PipelineState(%d)", uint8(s))
	}
}

// VertexState is the vertex stage of a cached pipeline.
type VertexState struct {
	Shader     ShaderHandle
	EntryPoint string
	Buffers    []gputypes.VertexBufferLayout
}

// FragmentState is the fragment stage of a cached pipeline.
type FragmentState struct {
	Shader     ShaderHandle
	EntryPoint string
	Targets    []gputypes.ColorTargetState
}

// RenderPipelineDescriptor describes a pipeline by shader handle so it can
// be queued before its shaders are compiled.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       []hal.BindGroupLayout
	Vertex       VertexState
	Fragment     *FragmentState
	Primitive    gputypes.PrimitiveState
	DepthStencil *hal.DepthStencilState
	Multisample  gputypes.MultisampleState
}

type cachedPipeline struct {
	desc     RenderPipelineDescriptor
	state    PipelineState
	err      error
	layout   hal.PipelineLayout
	pipeline hal.RenderPipeline
}

// PipelineCache queues render pipelines by descriptor and compiles them
// once, outside the draw path.
//
// Thread Safety:
// PipelineCache is safe for concurrent use. Lookups take a read lock;
// QueueRenderPipeline uses double-check locking.
type PipelineCache struct {
	mu sync.RWMutex

	shaders  *Shaders
	compile  ShaderCompiler
	byHash   map[uint64][]CachedPipelineID
	entries  []*cachedPipeline
	modules  map[ShaderHandle]hal.ShaderModule
	pending  int
	hits     uint64
	misses   uint64
	compiled uint64
}

// PipelineCacheOption configures a PipelineCache.
type PipelineCacheOption func(*PipelineCache)

// WithShaderCompiler replaces the default naga SPIR-V compiler.
func WithShaderCompiler(c ShaderCompiler) PipelineCacheOption {
	return func(p *PipelineCache) {
		if c != nil {
			p.compile = c
		}
	}
}

// NewPipelineCache creates a cache that resolves shader handles in shaders.
func NewPipelineCache(shaders *Shaders, opts ...PipelineCacheOption) *PipelineCache {
	if shaders == nil {
		shaders = NewShaders()
	}
	c := &PipelineCache{
		shaders: shaders,
		compile: SPIRVCompiler,
		byHash:  make(map[uint64][]CachedPipelineID),
		modules: make(map[ShaderHandle]hal.ShaderModule),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shaders returns the registry the cache resolves handles in.
func (c *PipelineCache) Shaders() *Shaders { return c.shaders }

// QueueRenderPipeline queues desc for compilation and returns its id.
// Identical descriptors return the same id.
func (c *PipelineCache) QueueRenderPipeline(desc *RenderPipelineDescriptor) (CachedPipelineID, error) {
	if desc == nil {
		return 0, ErrPipelineCacheNilDescriptor
	}
	descHash := HashRenderPipelineDescriptor(desc)

	// Fast path: read lock
	c.mu.RLock()
	if id, ok := c.lookup(descHash, desc); ok {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return id, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.lookup(descHash, desc); ok {
		atomic.AddUint64(&c.hits, 1)
		return id, nil
	}

	d := *desc
	d.Layout = append([]hal.BindGroupLayout(nil), desc.Layout...)
	if desc.Fragment != nil {
		f := *desc.Fragment
		d.Fragment = &f
	}

	//nolint:gosec // G115: pipeline count is far below uint32 range
	id := CachedPipelineID(len(c.entries))
	c.entries = append(c.entries, &cachedPipeline{desc: d, state: PipelineQueued})
	c.byHash[descHash] = append(c.byHash[descHash], id)
	c.pending++
	atomic.AddUint64(&c.misses, 1)
	Logger().Debug("pipeline queued", "label", desc.Label, "id", id)
	return id, nil
}

// lookup returns the entry equal to desc among those sharing descHash.
// Called with c.mu held.
func (c *PipelineCache) lookup(descHash uint64, desc *RenderPipelineDescriptor) (CachedPipelineID, bool) {
	for _, id := range c.byHash[descHash] {
		if sameDescriptor(&c.entries[id].desc, desc) {
			return id, true
		}
	}
	return 0, false
}

// sameDescriptor reports whether a and b describe the same pipeline.
// Bind group layouts compare by identity, everything else by value.
func sameDescriptor(a, b *RenderPipelineDescriptor) bool {
	if len(a.Layout) != len(b.Layout) {
		return false
	}
	for i := range a.Layout {
		if identity(a.Layout[i]) != identity(b.Layout[i]) {
			return false
		}
	}
	x, y := *a, *b
	x.Layout, y.Layout = nil, nil
	return reflect.DeepEqual(x, y)
}

// ProcessQueue compiles every queued pipeline whose shaders are registered.
// Pipelines waiting for a shader stay queued. Compile failures move the
// pipeline to PipelineError and are logged once.
// Returns the number of pipelines that became ready.
func (c *PipelineCache) ProcessQueue(device hal.Device) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == 0 || device == nil {
		return 0
	}

	ready := 0
	for id, e := range c.entries {
		if e.state != PipelineQueued {
			continue
		}
		err := c.build(device, e)
		switch {
		case err == nil:
			e.state = PipelineReady
			e.err = nil
			c.pending--
			ready++
			atomic.AddUint64(&c.compiled, 1)
			Logger().Info("pipeline ready", "label", e.desc.Label, "id", id)
		case errors.Is(err, ErrShaderNotRegistered):
			e.err = err
			Logger().Debug("pipeline waiting for shader", "label", e.desc.Label, "err", err)
		default:
			e.state = PipelineError
			e.err = err
			c.pending--
			Logger().Warn("pipeline compile failed", "label", e.desc.Label, "err", err)
		}
	}
	return ready
}

func (c *PipelineCache) build(device hal.Device, e *cachedPipeline) error {
	vs, err := c.module(device, e.desc.Vertex.Shader)
	if err != nil {
		return err
	}
	var fragment *hal.FragmentState
	if f := e.desc.Fragment; f != nil {
		fs, err := c.module(device, f.Shader)
		if err != nil {
			return err
		}
		fragment = &hal.FragmentState{Module: fs, EntryPoint: f.EntryPoint, Targets: f.Targets}
	}

	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            e.desc.Label + "_layout",
		BindGroupLayouts: e.desc.Layout,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  e.desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: e.desc.Vertex.EntryPoint,
			Buffers:    e.desc.Vertex.Buffers,
		},
		Fragment:     fragment,
		Primitive:    e.desc.Primitive,
		DepthStencil: e.desc.DepthStencil,
		Multisample:  e.desc.Multisample,
	})
	if err != nil {
		device.DestroyPipelineLayout(layout)
		return fmt.Errorf("create render pipeline: %w", err)
	}
	e.layout = layout
	e.pipeline = pipeline
	return nil
}

// module returns the compiled module for handle. Called with c.mu held.
func (c *PipelineCache) module(device hal.Device, handle ShaderHandle) (hal.ShaderModule, error) {
	if m, ok := c.modules[handle]; ok {
		return m, nil
	}
	sh, ok := c.shaders.Get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrShaderNotRegistered, uint64(handle))
	}
	compile := c.compile
	if sh.Compiler != nil {
		compile = sh.Compiler
	}
	src, err := compile(sh)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", sh.Label, err)
	}
	m, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  sh.Label,
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", sh.Label, err)
	}
	c.modules[handle] = m
	return m, nil
}

// GetRenderPipeline returns the compiled pipeline, or false while it is
// queued or after it failed.
func (c *PipelineCache) GetRenderPipeline(id CachedPipelineID) (hal.RenderPipeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) {
		return nil, false
	}
	e := c.entries[id]
	if e.state != PipelineReady {
		return nil, false
	}
	return e.pipeline, true
}

// State returns the state of id and the last error recorded for it.
func (c *PipelineCache) State(id CachedPipelineID) (PipelineState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.entries) {
		return PipelineQueued, fmt.Errorf("render: unknown pipeline id %d", id)
	}
	e := c.entries[id]
	return e.state, e.err
}

// Stats returns queue hits (descriptor already known) and misses.
func (c *PipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Compiled returns the number of pipelines compiled so far.
func (c *PipelineCache) Compiled() uint64 {
	return atomic.LoadUint64(&c.compiled)
}

// Len returns the number of distinct queued descriptors.
func (c *PipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Destroy releases every pipeline and shader module and empties the cache.
func (c *PipelineCache) Destroy(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.pipeline != nil {
			device.DestroyRenderPipeline(e.pipeline)
		}
		if e.layout != nil {
			device.DestroyPipelineLayout(e.layout)
		}
	}
	for _, m := range c.modules {
		device.DestroyShaderModule(m)
	}
	c.entries = nil
	c.pending = 0
	c.byHash = make(map[uint64][]CachedPipelineID)
	c.modules = make(map[ShaderHandle]hal.ShaderModule)
}

// HashRenderPipelineDescriptor computes an FNV-1a hash of desc.
// Bind group layouts are hashed by identity. State structs are also hashed
// through their printed form so that every field takes part in the key.
func HashRenderPipelineDescriptor(desc *RenderPipelineDescriptor) uint64 {
	h := fnv.New64a()

	hashWriteString(h, desc.Label)

	//nolint:gosec // G115: bind group count is bounded by GPU limits
	hashWriteUint32(h, uint32(len(desc.Layout)))
	for _, l := range desc.Layout {
		hashWriteUint64(h, identity(l))
	}

	hashWriteUint64(h, uint64(desc.Vertex.Shader))
	hashWriteString(h, desc.Vertex.EntryPoint)
	//nolint:gosec // G115: vertex buffer count is bounded by GPU limits (< 16)
	hashWriteUint32(h, uint32(len(desc.Vertex.Buffers)))
	for i := range desc.Vertex.Buffers {
		layout := &desc.Vertex.Buffers[i]
		hashWriteUint64(h, layout.ArrayStride)
		hashWriteUint32(h, uint32(layout.StepMode))
		//nolint:gosec // G115: attribute count is bounded by GPU limits (< 32)
		hashWriteUint32(h, uint32(len(layout.Attributes)))
		for j := range layout.Attributes {
			attr := &layout.Attributes[j]
			hashWriteUint32(h, attr.ShaderLocation)
			hashWriteUint32(h, uint32(attr.Format))
			hashWriteUint64(h, attr.Offset)
		}
	}

	if f := desc.Fragment; f != nil {
		hashWriteBool(h, true)
		hashWriteUint64(h, uint64(f.Shader))
		hashWriteString(h, f.EntryPoint)
		//nolint:gosec // G115: color target count is bounded by GPU limits (< 8)
		hashWriteUint32(h, uint32(len(f.Targets)))
		for i := range f.Targets {
			t := &f.Targets[i]
			hashWriteUint32(h, uint32(t.Format))
			hashWriteUint32(h, uint32(t.WriteMask))
			hashWriteBool(h, t.Blend != nil)
			if t.Blend != nil {
				hashWriteUint64(h, hashAny(*t.Blend))
			}
		}
	} else {
		hashWriteBool(h, false)
	}

	hashWriteUint32(h, uint32(desc.Primitive.Topology))
	hashWriteUint32(h, uint32(desc.Primitive.FrontFace))
	hashWriteUint32(h, uint32(desc.Primitive.CullMode))
	hashWriteUint64(h, hashAny(desc.Primitive))

	if ds := desc.DepthStencil; ds != nil {
		hashWriteBool(h, true)
		hashWriteUint32(h, uint32(ds.Format))
		hashWriteBool(h, ds.DepthWriteEnabled)
		hashWriteUint32(h, uint32(ds.DepthCompare))
		hashWriteUint64(h, hashAny(*ds))
	} else {
		hashWriteBool(h, false)
	}

	hashWriteUint32(h, uint32(desc.Multisample.Count))
	hashWriteUint64(h, uint64(desc.Multisample.Mask))
	hashWriteUint64(h, hashAny(desc.Multisample))

	return h.Sum64()
}

// hashAny hashes the printed form of a plain value struct.
func hashAny(v any) uint64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%+v", v)
	return h.Sum64()
}

// identity returns the address behind a pointer-backed interface value.
func identity(v any) uint64 {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return uint64(rv.Pointer())
	}
	return 0
}

func hashWriteString(h hash.Hash64, s string) {
	//nolint:gosec // G115: string length is bounded by practical limits
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
