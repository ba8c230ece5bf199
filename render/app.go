// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/wgpu/hal"
)

// ErrNilBufferWriter is returned when an App is created without a writer.
var ErrNilBufferWriter = errors.New("render: buffer writer is nil")

// Plugin adds systems, resources and graph nodes to an App.
type Plugin interface {
	// Build registers everything that does not need the device.
	Build(app *App) error

	// Finish creates device resources once every plugin is built.
	Finish(app *App) error
}

// ExtractSystem copies data from the main world into the render world.
type ExtractSystem func(main, renderWorld *World)

// PrepareSystem uploads render-world data to the GPU.
type PrepareSystem func(app *App) error

// Camera marks a main-world entity as a view.
type Camera struct {
	// Graph is the sub-graph run for this view.
	Graph SubGraphLabel

	// Target holds the view's main textures.
	Target *ViewTarget

	// Order sorts views; lower runs first.
	Order int
}

// App is a minimal host: two worlds, a render graph, a pipeline cache and
// the per-frame schedule that drives them.
//
// Each Update runs, in order: extraction systems, the globals upload,
// prepare systems, then PipelineCache.ProcessQueue. Render then runs the
// graph for every camera.
type App struct {
	Main        *World
	RenderWorld *World

	Shaders   *Shaders
	Pipelines *PipelineCache
	Graph     *Graph
	Globals   *GlobalsBuffer

	Device   hal.Device
	Write    BufferWriter
	Provider DeviceHandle
	Layout   UniformLayout

	extract  []ExtractSystem
	prepare  []PrepareSystem
	plugins  []Plugin
	finished bool
}

// AppOption configures an App.
type AppOption func(*App)

// WithUniformLayout selects the uniform layout rules for the backend.
func WithUniformLayout(l UniformLayout) AppOption {
	return func(a *App) { a.Layout = l }
}

// WithDeviceHandle records the host provider, used for the surface format.
func WithDeviceHandle(h DeviceHandle) AppOption {
	return func(a *App) { a.Provider = h }
}

// WithPipelineCacheOptions configures the pipeline cache.
func WithPipelineCacheOptions(opts ...PipelineCacheOption) AppOption {
	return func(a *App) {
		a.Pipelines = NewPipelineCache(a.Shaders, opts...)
	}
}

// NewApp creates an App on device. write uploads buffer data, usually
// QueueWriter(queue).
func NewApp(device hal.Device, write BufferWriter, opts ...AppOption) (*App, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if write == nil {
		return nil, ErrNilBufferWriter
	}
	shaders := NewShaders()
	a := &App{
		Main:        NewWorld(),
		RenderWorld: NewWorld(),
		Shaders:     shaders,
		Pipelines:   NewPipelineCache(shaders),
		Graph:       NewGraph(),
		Device:      device,
		Write:       write,
		Provider:    NullDeviceHandle{},
		Layout:      LayoutNative,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Globals = NewGlobalsBuffer(a.Layout)

	InsertResource(a.RenderWorld, a.Pipelines)
	InsertResource(a.RenderWorld, a.Globals)
	a.AddExtractSystem(ExtractComponentSystem[Camera]())
	return a, nil
}

// NewAppFromProvider creates an App on the HAL device and queue exposed by a
// host provider. The provider is recorded as with [WithDeviceHandle]; opts
// are applied after it.
func NewAppFromProvider(provider DeviceHandle, opts ...AppOption) (*App, error) {
	device, queue, err := HAL(provider)
	if err != nil {
		return nil, err
	}
	opts = append([]AppOption{WithDeviceHandle(provider)}, opts...)
	return NewApp(device, QueueWriter(queue), opts...)
}

// AddPlugins builds each plugin in order.
func (a *App) AddPlugins(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := p.Build(a); err != nil {
			return fmt.Errorf("build plugin %T: %w", p, err)
		}
		a.plugins = append(a.plugins, p)
	}
	return nil
}

// Finish runs Finish on every plugin. It is called once, after all plugins
// are added; later calls do nothing.
func (a *App) Finish() error {
	if a.finished {
		return nil
	}
	for _, p := range a.plugins {
		if err := p.Finish(a); err != nil {
			return fmt.Errorf("finish plugin %T: %w", p, err)
		}
	}
	a.finished = true
	return nil
}

// AddExtractSystem appends an extraction system.
func (a *App) AddExtractSystem(s ExtractSystem) { a.extract = append(a.extract, s) }

// AddPrepareSystem appends a prepare system.
func (a *App) AddPrepareSystem(s PrepareSystem) { a.prepare = append(a.prepare, s) }

// Update runs one frame of the schedule.
func (a *App) Update(ft FrameTime) error {
	for _, s := range a.extract {
		s(a.Main, a.RenderWorld)
	}
	if err := a.Globals.Prepare(a.Device, a.Write, ft.Globals()); err != nil {
		return fmt.Errorf("prepare globals: %w", err)
	}
	for _, s := range a.prepare {
		if err := s(a); err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
	}
	a.Pipelines.ProcessQueue(a.Device)
	return nil
}

// Views returns the extracted cameras sorted by Order, then entity.
func (a *App) Views() []CameraView {
	cams := ComponentsOf[Camera](a.RenderWorld)
	views := make([]CameraView, 0, cams.Len())
	cams.Each(func(e Entity, c Camera) {
		if c.Target == nil {
			return
		}
		views = append(views, CameraView{
			Graph: c.Graph,
			Order: c.Order,
			View:  &ExtractedView{Entity: e, Target: c.Target},
		})
	})
	sortViews(views)
	return views
}

// CameraView is an extracted camera with its sub-graph.
type CameraView struct {
	Graph SubGraphLabel
	Order int
	View  *ExtractedView
}

func sortViews(v []CameraView) {
	slices.SortStableFunc(v, func(a, b CameraView) int { return a.Order - b.Order })
}

// Render runs the graph for every extracted camera into ctx.
func (a *App) Render(ctx RenderContext) error {
	for _, cv := range a.Views() {
		if err := a.Graph.RunView(cv.Graph, ctx, a.RenderWorld, cv.View); err != nil {
			return fmt.Errorf("view %d: %w", cv.View.Entity, err)
		}
	}
	return nil
}

// Destroy releases resources owned by the App.
func (a *App) Destroy() {
	a.Globals.Destroy(a.Device)
	a.Pipelines.Destroy(a.Device)
}
