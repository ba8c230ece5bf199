package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/glitch"
	"github.com/gogpu/glitch/render"
)

// Scene describes the cameras rendered by the demo.
//
// Example scene.toml:
//
//	frames = 240
//	width = 1280
//	height = 720
//	layout = "webgl2"
//
//	[[camera]]
//	name = "world"
//	graph = "core_3d"
//	intensity = 1.0
//	pulse = true
//
//	[[camera]]
//	name = "hud"
//	graph = "core_2d"
//	order = 1
//	intensity = 0.25
//	aberration = [0.8, 0.1, 0.1, 0.1, 0.8, 0.1, 0.1, 0.1, 0.8]
type Scene struct {
	Frames  int           `toml:"frames"`
	Width   uint32        `toml:"width"`
	Height  uint32        `toml:"height"`
	Layout  string        `toml:"layout"`
	Cameras []SceneCamera `toml:"camera"`
}

// SceneCamera is one camera of a Scene.
type SceneCamera struct {
	Name      string  `toml:"name"`
	Graph     string  `toml:"graph"`
	Order     int     `toml:"order"`
	Intensity float32 `toml:"intensity"`

	// Aberration is the color matrix in row-major order. Empty means identity.
	Aberration []float32 `toml:"aberration"`

	// Pulse sweeps the intensity from 0 to Intensity once per second.
	Pulse bool `toml:"pulse"`
}

var errInvalidScene = errors.New("invalid scene")

// defaultScene is used when no scene file is given.
func defaultScene() Scene {
	return Scene{
		Frames: 120,
		Width:  640,
		Height: 360,
		Layout: "native",
		Cameras: []SceneCamera{
			{Name: "world", Graph: string(render.Core3d), Intensity: 1, Pulse: true},
			{Name: "hud", Graph: string(render.Core2d), Order: 1, Intensity: 0.25, Aberration: []float32{
				0.8, 0.1, 0.1,
				0.1, 0.8, 0.1,
				0.1, 0.1, 0.8,
			}},
		},
	}
}

// loadScene reads a TOML scene file. Fields left out keep their defaults.
func loadScene(path string) (Scene, error) {
	f, err := os.Open(path) //nolint:gosec // path from command line
	if err != nil {
		return Scene{}, err
	}
	defer f.Close()
	return decodeScene(f)
}

func decodeScene(r io.Reader) (Scene, error) {
	s := defaultScene()
	s.Cameras = nil
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&s); err != nil {
		return Scene{}, fmt.Errorf("decode scene: %w", err)
	}
	if len(s.Cameras) == 0 {
		s.Cameras = defaultScene().Cameras
	}
	return s, s.validate()
}

func (s Scene) validate() error {
	if s.Frames < 0 {
		return fmt.Errorf("%w: frames = %d", errInvalidScene, s.Frames)
	}
	if s.Width == 0 || s.Height == 0 {
		return fmt.Errorf("%w: size %dx%d", errInvalidScene, s.Width, s.Height)
	}
	if _, err := parseLayout(s.Layout); err != nil {
		return fmt.Errorf("%w: %w", errInvalidScene, err)
	}
	for _, c := range s.Cameras {
		if _, err := parseGraph(c.Graph); err != nil {
			return fmt.Errorf("%w: camera %q: %w", errInvalidScene, c.Name, err)
		}
		if n := len(c.Aberration); n != 0 && n != 9 {
			return fmt.Errorf("%w: camera %q: aberration has %d values, want 9", errInvalidScene, c.Name, n)
		}
	}
	return nil
}

func parseLayout(s string) (render.UniformLayout, error) {
	switch s {
	case "", "native":
		return render.LayoutNative, nil
	case "webgl2":
		return render.LayoutWebGL2, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

func parseGraph(s string) (render.SubGraphLabel, error) {
	switch render.SubGraphLabel(s) {
	case "", render.Core3d:
		return render.Core3d, nil
	case render.Core2d:
		return render.Core2d, nil
	default:
		return "", fmt.Errorf("unknown graph %q", s)
	}
}

// Settings returns the camera's effect settings at full intensity.
func (c SceneCamera) Settings() glitch.Settings {
	s := glitch.DefaultSettings()
	s.Intensity = c.Intensity
	if len(c.Aberration) == 9 {
		s.ColorAberration = glitch.Mat3FromRows([9]float32(c.Aberration))
	}
	return s
}

// IntensityAt returns the intensity for frame at 60 frames per second.
func (c SceneCamera) IntensityAt(frame int) float32 {
	if !c.Pulse {
		return c.Intensity
	}
	return c.Intensity * float32(frame%60) / 59
}
