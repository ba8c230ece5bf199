// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultTargetFormat is the view format used when the host does not report
// a surface format.
const DefaultTargetFormat = gputypes.TextureFormatBGRA8Unorm

// Device errors.
var (
	// ErrNilDevice is returned when a nil device is supplied.
	ErrNilDevice = errors.New("render: device is nil")

	// ErrNoHAL is returned when a device provider does not expose HAL types.
	ErrNoHAL = errors.New("render: provider does not expose HAL device")

	// ErrSubmitTimeout is returned when a submitted frame does not complete
	// within the wait timeout.
	ErrSubmitTimeout = errors.New("render: timed out waiting for GPU")
)

// DeviceHandle provides GPU device access from the host application.
//
// The effect RECEIVES the device from the host, it never creates one.
// DeviceHandle is an alias for gpucontext.DeviceProvider so any gpucontext
// host can be passed directly.
type DeviceHandle = gpucontext.DeviceProvider

// BufferWriter uploads data into a buffer at the given byte offset.
// Hosts usually build one from their queue with [QueueWriter].
type BufferWriter func(buffer hal.Buffer, offset uint64, data []byte)

// QueueWriter returns a BufferWriter backed by queue.WriteBuffer.
func QueueWriter(queue hal.Queue) BufferWriter {
	return func(buffer hal.Buffer, offset uint64, data []byte) {
		queue.WriteBuffer(buffer, offset, data)
	}
}

// HAL extracts the HAL device and queue from a host provider.
// The provider must implement HalDevice() any and HalQueue() any.
func HAL(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return device, queue, nil
}

// SurfaceFormat returns the provider's surface format, or
// [DefaultTargetFormat] when the provider is nil or reports none.
func SurfaceFormat(provider DeviceHandle) gputypes.TextureFormat {
	if provider == nil {
		return DefaultTargetFormat
	}
	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		return f
	}
	return DefaultTargetFormat
}

// HALDeviceHandle is a DeviceHandle over an already opened HAL device.
// Headless hosts and tests use it to hand a device to plugins.
type HALDeviceHandle struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

// NewHALDeviceHandle wraps a HAL device and queue.
func NewHALDeviceHandle(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) *HALDeviceHandle {
	return &HALDeviceHandle{device: device, queue: queue, format: format}
}

// Device returns nil; HAL access goes through HalDevice.
func (h *HALDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil; HAL access goes through HalQueue.
func (h *HALDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil.
func (h *HALDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns the configured surface format.
func (h *HALDeviceHandle) SurfaceFormat() gputypes.TextureFormat { return h.format }

// HalDevice returns the wrapped hal.Device.
func (h *HALDeviceHandle) HalDevice() any { return h.device }

// HalQueue returns the wrapped hal.Queue.
func (h *HALDeviceHandle) HalQueue() any { return h.queue }

// NullDeviceHandle is a DeviceHandle that provides nil implementations.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var (
	_ DeviceHandle = NullDeviceHandle{}
	_ DeviceHandle = (*HALDeviceHandle)(nil)
)

// submitTimeout bounds the wait for a submitted frame.
const submitTimeout = 5 * time.Second

// Submit submits a finished command buffer and waits for the GPU.
// The command buffer is freed in all cases.
func Submit(device hal.Device, queue hal.Queue, cmdBuf hal.CommandBuffer) error {
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return wait(device, fence, submitTimeout)
}

func wait(device hal.Device, fence hal.Fence, timeout time.Duration) error {
	ok, err := device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrSubmitTimeout, timeout)
	}
	return nil
}
