// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestLoggerDefaultSilent(t *testing.T) {
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger should be silent")
	}
}

func TestSetLoggerNil(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	SetLogger(nil)
	if Logger() == nil || Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}

func TestPipelineReadyLogged(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	dev, _, cleanup := createNoopDevice(t)
	defer cleanup()

	c := newTestCache(WGSLCompiler)
	_ = c.Shaders().Add(testFragmentHandle, Shader{Label: "frag", WGSL: "fs"})
	if _, err := c.QueueRenderPipeline(testDescriptor(gputypes.TextureFormatBGRA8Unorm)); err != nil {
		t.Fatal(err)
	}
	c.ProcessQueue(dev)

	if !strings.Contains(buf.String(), "pipeline ready") {
		t.Errorf("missing ready log: %s", buf.String())
	}
	if strings.Contains(buf.String(), "pipeline queued") {
		t.Error("debug record emitted at info level")
	}
}
