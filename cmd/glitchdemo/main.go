// Command glitchdemo runs the video glitch effect headless on a noop device.
//
// It builds an App with the glitch plugin, spawns the cameras of a scene
// (two by default, or read from a TOML file with -scene) and renders a
// number of frames, logging what the effect does at each step.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/glitch"
	"github.com/gogpu/glitch/render"
)

func main() {
	var (
		scenePath = flag.String("scene", "", "TOML scene file (default: built-in two-camera scene)")
		frames    = flag.Int("frames", -1, "override the number of frames")
		verbose   = flag.Bool("v", false, "log debug records")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	glitch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	scene := defaultScene()
	if *scenePath != "" {
		var err error
		if scene, err = loadScene(*scenePath); err != nil {
			log.Fatalf("glitchdemo: %v", err)
		}
	}
	if *frames >= 0 {
		scene.Frames = *frames
	}
	if err := run(scene); err != nil {
		log.Fatalf("glitchdemo: %v", err)
	}
}

// openDevice opens the first noop adapter.
func openDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, nil, errors.New("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, fmt.Errorf("open adapter: %w", err)
	}
	return openDev.Device, openDev.Queue, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}, nil
}

func run(scene Scene) error {
	if err := scene.validate(); err != nil {
		return err
	}
	layout, _ := parseLayout(scene.Layout)

	device, queue, closeDevice, err := openDevice()
	if err != nil {
		return err
	}
	defer closeDevice()

	// The noop backend does not consume SPIR-V, so pass WGSL through.
	provider := render.NewHALDeviceHandle(device, queue, gputypes.TextureFormatBGRA8Unorm)
	app, err := render.NewAppFromProvider(provider,
		render.WithUniformLayout(layout),
		render.WithPipelineCacheOptions(render.WithShaderCompiler(render.WGSLCompiler)),
	)
	if err != nil {
		return err
	}
	defer app.Destroy()

	plugin := glitch.NewPlugin()
	if err := app.AddPlugins(plugin); err != nil {
		return err
	}
	if err := app.Finish(); err != nil {
		return err
	}
	defer plugin.Destroy(app)

	cams := render.ComponentsOf[render.Camera](app.Main)
	settings := render.ComponentsOf[glitch.Settings](app.Main)

	targets := make([]*render.ViewTarget, 0, len(scene.Cameras))
	defer func() {
		for _, t := range targets {
			t.Destroy(device)
		}
	}()
	entities := make([]render.Entity, 0, len(scene.Cameras))
	for _, c := range scene.Cameras {
		graph, _ := parseGraph(c.Graph)
		t, err := render.CreateViewTarget(device, c.Name, scene.Width, scene.Height, provider.SurfaceFormat())
		if err != nil {
			return fmt.Errorf("camera %q: %w", c.Name, err)
		}
		targets = append(targets, t)
		e := app.Main.Spawn()
		cams.Insert(e, render.Camera{Graph: graph, Target: t, Order: c.Order})
		settings.Insert(e, c.Settings())
		entities = append(entities, e)
	}

	const frameTime = time.Second / 60
	start := time.Now()
	for i := range scene.Frames {
		ft := render.FrameTime{
			Elapsed: time.Duration(i) * frameTime,
			Delta:   frameTime,
			Frame:   uint32(i), //nolint:gosec // frame count from scene
		}

		for k, c := range scene.Cameras {
			if !c.Pulse {
				continue
			}
			s, _ := settings.Get(entities[k])
			s.Intensity = c.IntensityAt(i)
			settings.Insert(entities[k], s)
		}

		if err := app.Update(ft); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := renderFrame(app, queue); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}

	hits, misses := app.Pipelines.Stats()
	glitch.Logger().Info("done",
		"frames", scene.Frames,
		"elapsed", time.Since(start),
		"pipelines", app.Pipelines.Compiled(),
		"cache_hits", hits,
		"cache_misses", misses,
	)
	for k, t := range targets {
		glitch.Logger().Info("view", "camera", scene.Cameras[k].Name, "post_process_writes", t.PostProcessWrites())
	}
	return nil
}

func renderFrame(app *render.App, queue hal.Queue) error {
	ctx, err := render.NewCommandContext(app.Device, "glitchdemo_frame")
	if err != nil {
		return err
	}
	if err := app.Render(ctx); err != nil {
		ctx.Discard()
		return err
	}
	return ctx.Submit(queue)
}
