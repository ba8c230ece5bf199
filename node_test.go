package glitch

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glitch/render"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// countingDevice counts bind groups created and destroyed on the wrapped
// device and keeps the last descriptor.
type countingDevice struct {
	hal.Device
	bindGroups int
	destroyed  int
	last       *hal.BindGroupDescriptor
	descs      []*hal.BindGroupDescriptor
	fail       error
}

func (d *countingDevice) DestroyBindGroup(group hal.BindGroup) {
	d.destroyed++
	d.Device.DestroyBindGroup(group)
}

func (d *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if d.fail != nil {
		return nil, d.fail
	}
	d.bindGroups++
	d.last = desc
	d.descs = append(d.descs, desc)
	return d.Device.CreateBindGroup(desc)
}

type drawCall struct {
	vertexCount, instanceCount, firstVertex, firstInstance uint32
}

// recordingPass records every call made by a node.
type recordingPass struct {
	pipelines  []hal.RenderPipeline
	bindGroups []uint32
	draws      []drawCall
	ended      bool
}

func (p *recordingPass) SetPipeline(pipeline hal.RenderPipeline) {
	p.pipelines = append(p.pipelines, pipeline)
}

func (p *recordingPass) SetBindGroup(index uint32, _ hal.BindGroup, _ []uint32) {
	p.bindGroups = append(p.bindGroups, index)
}

func (p *recordingPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.draws = append(p.draws, drawCall{vertexCount, instanceCount, firstVertex, firstInstance})
}

func (p *recordingPass) End() { p.ended = true }

// recordingContext is a RenderContext that records passes instead of
// encoding them.
type recordingContext struct {
	device  hal.Device
	descs   []*hal.RenderPassDescriptor
	passes  []*recordingPass
	tracked []hal.BindGroup
}

func (c *recordingContext) Device() hal.Device { return c.device }

func (c *recordingContext) TrackBindGroup(group hal.BindGroup) {
	c.tracked = append(c.tracked, group)
}

func (c *recordingContext) BeginTrackedRenderPass(desc *hal.RenderPassDescriptor) render.TrackedRenderPass {
	p := &recordingPass{}
	c.descs = append(c.descs, desc)
	c.passes = append(c.passes, p)
	return p
}

func (c *recordingContext) draws() int {
	n := 0
	for _, p := range c.passes {
		n += len(p.draws)
	}
	return n
}

// uploads captures BufferWriter calls.
type uploads struct {
	writes map[hal.Buffer][]byte
}

func newUploads() *uploads { return &uploads{writes: make(map[hal.Buffer][]byte)} }

func (u *uploads) write(buffer hal.Buffer, offset uint64, data []byte) {
	buf := u.writes[buffer]
	if need := int(offset) + len(data); len(buf) < need {
		buf = append(buf, make([]byte, need-len(buf))...)
	}
	copy(buf[offset:], data)
	u.writes[buffer] = buf
}

// testApp is an App with the plugin built and finished on a noop device.
type testApp struct {
	*render.App
	device  *countingDevice
	queue   hal.Queue
	uploads *uploads
}

func newTestApp(t *testing.T, opts ...PluginOption) *testApp {
	t.Helper()
	dev, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)

	device := &countingDevice{Device: dev}
	up := newUploads()
	app, err := render.NewApp(device, up.write,
		render.WithPipelineCacheOptions(render.WithShaderCompiler(render.WGSLCompiler)))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := app.AddPlugins(NewPlugin(opts...)); err != nil {
		t.Fatalf("AddPlugins: %v", err)
	}
	if err := app.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return &testApp{App: app, device: device, queue: queue, uploads: up}
}

// spawnCamera adds a camera with settings and a fresh view target.
func (a *testApp) spawnCamera(t *testing.T, s Settings) (render.Entity, *render.ViewTarget) {
	t.Helper()
	target, err := render.CreateViewTarget(a.device, "test_view", 64, 32, render.DefaultTargetFormat)
	if err != nil {
		t.Fatalf("CreateViewTarget: %v", err)
	}
	t.Cleanup(func() { target.Destroy(a.device) })

	e := a.Main.Spawn()
	render.ComponentsOf[render.Camera](a.Main).Insert(e, render.Camera{Graph: render.Core3d, Target: target})
	render.ComponentsOf[Settings](a.Main).Insert(e, s)
	return e, target
}

func (a *testApp) update(t *testing.T, frame uint32) {
	t.Helper()
	err := a.Update(render.FrameTime{
		Elapsed: time.Duration(frame) * 16 * time.Millisecond,
		Delta:   16 * time.Millisecond,
		Frame:   frame,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestNodeSkipsWhenPipelineNotReady(t *testing.T) {
	app := newTestApp(t)
	e, target := app.spawnCamera(t, DefaultSettings())

	// Extract and prepare by hand, without ProcessQueue.
	render.ExtractComponents[Settings](app.Main, app.RenderWorld)
	uniforms, _ := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld)
	if err := uniforms.Prepare(app.Device, app.Write, render.ComponentsOf[Settings](app.RenderWorld)); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := app.Globals.Prepare(app.Device, app.Write, render.GlobalsUniform{}); err != nil {
		t.Fatalf("globals Prepare: %v", err)
	}

	ctx := &recordingContext{device: app.device}
	view := &render.ExtractedView{Entity: e, Target: target}
	if err := (Node{}).Run(ctx, app.RenderWorld, view); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(ctx.passes) != 0 || ctx.draws() != 0 {
		t.Errorf("passes=%d draws=%d, want none", len(ctx.passes), ctx.draws())
	}
	if app.device.bindGroups != 0 {
		t.Errorf("bind groups = %d, want 0", app.device.bindGroups)
	}
	if target.PostProcessWrites() != 0 || target.MainTextureIndex() != 0 {
		t.Error("view target must not be touched while the pipeline is not ready")
	}
}

func TestNodeSkipsWhenShaderFailsToCompile(t *testing.T) {
	compileErr := errors.New("bad shader")
	app := newTestApp(t, WithShaderCompiler(func(render.Shader) (hal.ShaderSource, error) {
		return hal.ShaderSource{}, compileErr
	}))
	e, target := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	pipeline, _ := render.Resource[*Pipeline](app.RenderWorld)
	state, err := app.Pipelines.State(pipeline.ID())
	if state != render.PipelineError {
		t.Fatalf("state = %v, want error", state)
	}
	if !errors.Is(err, compileErr) {
		t.Errorf("recorded err = %v, want %v", err, compileErr)
	}

	ctx := &recordingContext{device: app.device}
	if err := (Node{}).Run(ctx, app.RenderWorld, &render.ExtractedView{Entity: e, Target: target}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.draws() != 0 || target.PostProcessWrites() != 0 {
		t.Error("failed pipeline must skip the view")
	}
}

func TestNodeSkipsViewWithoutSettings(t *testing.T) {
	app := newTestApp(t)
	_, _ = app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	// A second view that never received settings.
	target, err := render.CreateViewTarget(app.device, "bare", 16, 16, render.DefaultTargetFormat)
	if err != nil {
		t.Fatalf("CreateViewTarget: %v", err)
	}
	defer target.Destroy(app.device)

	ctx := &recordingContext{device: app.device}
	view := &render.ExtractedView{Entity: app.Main.Spawn(), Target: target}
	if err := (Node{}).Run(ctx, app.RenderWorld, view); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.draws() != 0 || target.PostProcessWrites() != 0 {
		t.Error("view without settings must be skipped untouched")
	}
}

func TestNodeSkipsWithoutGlobals(t *testing.T) {
	app := newTestApp(t)
	e, target := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	// Globals are host-owned; drop them.
	app.Globals.Destroy(app.Device)

	ctx := &recordingContext{device: app.device}
	if err := (Node{}).Run(ctx, app.RenderWorld, &render.ExtractedView{Entity: e, Target: target}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.draws() != 0 || target.PostProcessWrites() != 0 {
		t.Error("view must be skipped when globals are missing")
	}
}

func TestNodeDrawsWhenReady(t *testing.T) {
	app := newTestApp(t)
	e, target := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	ctx := &recordingContext{device: app.device}
	before := target.MainTextureIndex()
	if err := (Node{}).Run(ctx, app.RenderWorld, &render.ExtractedView{Entity: e, Target: target}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if app.device.bindGroups != 1 {
		t.Errorf("bind groups = %d, want 1", app.device.bindGroups)
	}
	if len(ctx.tracked) != 1 || app.device.destroyed != 0 {
		t.Errorf("tracked=%d destroyed=%d, want the bind group handed to the context alive",
			len(ctx.tracked), app.device.destroyed)
	}
	if len(ctx.passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(ctx.passes))
	}
	pass := ctx.passes[0]
	if len(pass.pipelines) != 1 {
		t.Errorf("SetPipeline calls = %d, want 1", len(pass.pipelines))
	}
	if len(pass.bindGroups) != 1 || pass.bindGroups[0] != 0 {
		t.Errorf("SetBindGroup indices = %v, want [0]", pass.bindGroups)
	}
	if len(pass.draws) != 1 || pass.draws[0] != (drawCall{3, 1, 0, 0}) {
		t.Errorf("draws = %v, want [{3 1 0 0}]", pass.draws)
	}
	if !pass.ended {
		t.Error("pass not ended")
	}

	desc := ctx.descs[0]
	if len(desc.ColorAttachments) != 1 {
		t.Fatalf("color attachments = %d, want 1", len(desc.ColorAttachments))
	}
	if desc.DepthStencilAttachment != nil {
		t.Error("pass must not have a depth/stencil attachment")
	}
	ca := desc.ColorAttachments[0]
	if ca.LoadOp != gputypes.LoadOpLoad || ca.StoreOp != gputypes.StoreOpStore {
		t.Errorf("ops = %v/%v, want load/store", ca.LoadOp, ca.StoreOp)
	}

	if target.PostProcessWrites() != 1 {
		t.Errorf("PostProcessWrite calls = %d, want 1", target.PostProcessWrites())
	}
	if target.MainTextureIndex() == before {
		t.Error("main texture did not flip")
	}

	bg := app.device.last
	if len(bg.Entries) != 4 {
		t.Fatalf("bind group entries = %d, want 4", len(bg.Entries))
	}
	for i, entry := range bg.Entries {
		if entry.Binding != uint32(i) {
			t.Errorf("entry %d binding = %d, want %d", i, entry.Binding, i)
		}
	}
}

func TestNodeBindGroupFailure(t *testing.T) {
	app := newTestApp(t)
	e, target := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	app.device.fail = errors.New("out of descriptors")
	ctx := &recordingContext{device: app.device}
	main := target.MainTextureView()
	err := (Node{}).Run(ctx, app.RenderWorld, &render.ExtractedView{Entity: e, Target: target})
	if !errors.Is(err, app.device.fail) {
		t.Fatalf("err = %v, want wrapped bind group failure", err)
	}
	if len(ctx.passes) != 0 || len(ctx.tracked) != 0 {
		t.Error("no pass may begin after a bind group failure")
	}
	if target.PostProcessWrites() != 0 || target.MainTextureIndex() != 0 || target.MainTextureView() != main {
		t.Error("view target flipped although nothing was written")
	}
}

func TestNodeTwoCameras(t *testing.T) {
	app := newTestApp(t)
	soft := DefaultSettings()
	soft.Intensity = 0.2
	hard := DefaultSettings()
	hard.Intensity = 0.9
	hard.ColorAberration = Mat3FromRows([9]float32{0, 0, 1, 0, 1, 0, 1, 0, 0})

	e1, t1 := app.spawnCamera(t, soft)
	e2, t2 := app.spawnCamera(t, hard)
	app.update(t, 1)

	uniforms, _ := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld)
	b1, ok1 := uniforms.Binding(e1)
	b2, ok2 := uniforms.Binding(e2)
	if !ok1 || !ok2 {
		t.Fatal("both cameras need a settings binding")
	}
	if b1.Offset == b2.Offset {
		t.Fatalf("cameras share offset %d", b1.Offset)
	}
	for _, b := range []render.BufferBinding{b1, b2} {
		if b.Offset%render.MinUniformBufferOffsetAlignment != 0 {
			t.Errorf("offset %d not aligned", b.Offset)
		}
		if b.Size != SettingsSizeNative {
			t.Errorf("binding size = %d, want %d", b.Size, SettingsSizeNative)
		}
	}

	// The uploaded image holds each camera's own settings.
	data := app.uploads.writes[b1.Buffer]
	for _, c := range []struct {
		b    render.BufferBinding
		want Settings
	}{{b1, soft}, {b2, hard}} {
		got, err := DecodeSettings(data[c.b.Offset:c.b.Offset+c.b.Size], render.LayoutNative)
		if err != nil {
			t.Fatalf("DecodeSettings: %v", err)
		}
		if got != c.want {
			t.Errorf("uploaded %+v, want %+v", got, c.want)
		}
	}

	ctx := &recordingContext{device: app.device}
	if err := app.Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if app.device.bindGroups != 2 {
		t.Errorf("bind groups = %d, want 2", app.device.bindGroups)
	}
	if ctx.draws() != 2 {
		t.Errorf("draws = %d, want 2", ctx.draws())
	}
	if t1.PostProcessWrites() != 1 || t2.PostProcessWrites() != 1 {
		t.Error("each view must flip exactly once")
	}

	// Each bind group points at its own camera's slot.
	offsets := map[uint64]bool{}
	for _, desc := range app.device.descs {
		bb, ok := desc.Entries[bindingSettings].Resource.(gputypes.BufferBinding)
		if !ok {
			t.Fatalf("settings entry is %T, want BufferBinding", desc.Entries[bindingSettings].Resource)
		}
		offsets[bb.Offset] = true
	}
	if !offsets[b1.Offset] || !offsets[b2.Offset] {
		t.Errorf("bind group offsets %v, want %d and %d", offsets, b1.Offset, b2.Offset)
	}
}

func TestNodeSettingsChangeBetweenFrames(t *testing.T) {
	app := newTestApp(t)
	e, _ := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	s := DefaultSettings()
	s.Intensity = 0.3
	render.ComponentsOf[Settings](app.Main).Insert(e, s)
	app.update(t, 2)

	uniforms, _ := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld)
	b, ok := uniforms.Binding(e)
	if !ok {
		t.Fatal("no binding")
	}
	got, err := DecodeSettings(app.uploads.writes[b.Buffer][b.Offset:b.Offset+b.Size], render.LayoutNative)
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if got.Intensity != 0.3 {
		t.Errorf("intensity = %v, want 0.3", got.Intensity)
	}
}

func TestNodeDespawnedCameraLosesBinding(t *testing.T) {
	app := newTestApp(t)
	e, _ := app.spawnCamera(t, DefaultSettings())
	app.update(t, 1)

	app.Main.Despawn(e)
	app.update(t, 2)

	uniforms, _ := render.Resource[*render.ComponentUniforms[Settings]](app.RenderWorld)
	if _, ok := uniforms.Binding(e); ok {
		t.Error("despawned camera still has a settings binding")
	}
	if len(app.Views()) != 0 {
		t.Errorf("views = %d, want 0", len(app.Views()))
	}
}
