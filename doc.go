// Package glitch provides a full-screen "video glitch" post-process effect
// for the gogpu render graph.
//
// # Overview
//
// The effect tears rows sideways, drifts color channels apart and mixes them
// through a 3x3 color aberration matrix. It is driven by one record per
// camera, [Settings], which the application may change every frame.
//
// # Quick Start
//
//	app, _ := render.NewApp(device, render.QueueWriter(queue))
//	_ = app.AddPlugins(glitch.NewPlugin())
//	_ = app.Finish()
//
//	cam := app.Main.Spawn()
//	render.ComponentsOf[render.Camera](app.Main).Insert(cam, render.Camera{
//	    Graph:  render.Core3d,
//	    Target: target,
//	})
//	render.ComponentsOf[glitch.Settings](app.Main).Insert(cam, glitch.DefaultSettings())
//
//	for frame := range frames {
//	    _ = app.Update(render.FrameTime{Frame: uint32(frame)})
//	    ctx, _ := render.NewCommandContext(device, "frame")
//	    _ = app.Render(ctx)
//	    _ = ctx.Submit(queue)
//	}
//
// # Frame Flow
//
// Each frame the host extracts Settings into the render world, packs them
// into one uniform buffer (one aligned slot per camera), uploads the globals
// and compiles queued pipelines. The graph then runs [Node] for every view:
//
//	Core3d: Tonemapping -> video_glitch -> EndMainPassPostProcessing
//	Core2d: EndMainPass -> video_glitch -> Tonemapping
//
// A node call that finds the pipeline still compiling, or no settings for
// its camera, skips the view without error.
//
// # Uniform Layout
//
// Settings are encoded to match the WGSL struct exactly. Native backends use
// 64 bytes; WebGL2 adds a vec2 padding field and rounds to 80 bytes. See
// [Settings.AppendUniform] and [DecodeSettings].
//
// # Logging
//
// glitch is silent by default. Call [SetLogger] to route diagnostics to a
// log/slog logger.
package glitch
