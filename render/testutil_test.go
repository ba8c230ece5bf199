// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
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

type bufferWrite struct {
	buffer hal.Buffer
	offset uint64
	data   []byte
}

// writeLog records BufferWriter calls.
type writeLog struct {
	writes []bufferWrite
}

func (l *writeLog) write(buffer hal.Buffer, offset uint64, data []byte) {
	l.writes = append(l.writes, bufferWrite{buffer, offset, append([]byte(nil), data...)})
}

// bufferCountingDevice counts buffer creations.
type bufferCountingDevice struct {
	hal.Device
	created int
	sizes   []uint64
}

func (d *bufferCountingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.created++
	d.sizes = append(d.sizes, desc.Size)
	return d.Device.CreateBuffer(desc)
}
