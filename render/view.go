// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrInvalidViewSize is returned when a view target has a zero dimension.
var ErrInvalidViewSize = errors.New("render: view size must be non-zero")

// PostProcessWrite is a source/destination pair handed out by
// [ViewTarget.PostProcessWrite]. It is valid for the node call that
// requested it and must not be stored.
type PostProcessWrite struct {
	// Source is the current main texture. Effects read from it.
	Source hal.TextureView

	// Destination becomes the main texture after the call. Effects must
	// write every pixel of it.
	Destination hal.TextureView
}

// ViewTarget holds the two main textures of a view.
//
// Post-process effects ping-pong between them: each PostProcessWrite returns
// the current main texture as the source and flips the main texture to the
// other one, which the caller writes as the destination.
type ViewTarget struct {
	width, height uint32
	format        gputypes.TextureFormat

	textures [2]hal.Texture
	views    [2]hal.TextureView
	main     int
	writes   uint64
}

// NewViewTarget creates a view target over two existing texture views.
// The target does not own them; Destroy is a no-op for the views.
func NewViewTarget(a, b hal.TextureView, width, height uint32, format gputypes.TextureFormat) *ViewTarget {
	return &ViewTarget{
		width:  width,
		height: height,
		format: format,
		views:  [2]hal.TextureView{a, b},
	}
}

// CreateViewTarget allocates both main textures on device.
func CreateViewTarget(device hal.Device, label string, width, height uint32, format gputypes.TextureFormat) (*ViewTarget, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidViewSize, width, height)
	}

	t := &ViewTarget{width: width, height: height, format: format}
	for i := range t.textures {
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         fmt.Sprintf("%s_main_%c", label, 'a'+i),
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			t.Destroy(device)
			return nil, fmt.Errorf("create main texture %d: %w", i, err)
		}
		t.textures[i] = tex

		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:         fmt.Sprintf("%s_main_%c_view", label, 'a'+i),
			Format:        format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			t.Destroy(device)
			return nil, fmt.Errorf("create main texture view %d: %w", i, err)
		}
		t.views[i] = view
	}
	return t, nil
}

// PostProcessWrite returns the current main texture as Source, flips the
// main texture and returns the new main texture as Destination.
func (t *ViewTarget) PostProcessWrite() PostProcessWrite {
	src := t.main
	t.main = 1 - t.main
	t.writes++
	return PostProcessWrite{Source: t.views[src], Destination: t.views[t.main]}
}

// MainTextureView returns the current main texture view.
func (t *ViewTarget) MainTextureView() hal.TextureView { return t.views[t.main] }

// MainTextureIndex returns which of the two textures is currently main.
func (t *ViewTarget) MainTextureIndex() int { return t.main }

// PostProcessWrites returns how many times PostProcessWrite was called.
func (t *ViewTarget) PostProcessWrites() uint64 { return t.writes }

// Size returns the target dimensions.
func (t *ViewTarget) Size() (width, height uint32) { return t.width, t.height }

// Format returns the texture format of the main textures.
func (t *ViewTarget) Format() gputypes.TextureFormat { return t.format }

// Destroy releases textures created by CreateViewTarget.
func (t *ViewTarget) Destroy(device hal.Device) {
	for i := range t.textures {
		if t.textures[i] == nil {
			continue
		}
		if t.views[i] != nil {
			device.DestroyTextureView(t.views[i])
			t.views[i] = nil
		}
		device.DestroyTexture(t.textures[i])
		t.textures[i] = nil
	}
}

// ExtractedView is a camera as seen by the render graph.
type ExtractedView struct {
	// Entity is the camera entity; per-view components are keyed by it.
	Entity Entity

	// Target is the view's double-buffered main texture.
	Target *ViewTarget
}
