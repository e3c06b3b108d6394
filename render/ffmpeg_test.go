package render

import (
	"context"
	"strings"
	"testing"

	"podshorts/pipeline"
)

func TestFFmpeg(t *testing.T) {
	ctx := context.Background()
	f := NewFFmpeg()

	t.Run("join rejects empty input", func(t *testing.T) {
		if err := f.Join(ctx, nil, "out.mp3"); err == nil {
			t.Error("expected error for empty input list")
		}
	})

	t.Run("render rejects an empty plan", func(t *testing.T) {
		if _, err := f.Render(ctx, pipeline.RenderJob{}); err == nil {
			t.Error("expected error for empty plan")
		}
	})

	t.Run("binary names default from PATH", func(t *testing.T) {
		var zero FFmpeg
		if zero.bin() != "ffmpeg" || zero.probeBin() != "ffprobe" {
			t.Errorf("defaults = %s/%s", zero.bin(), zero.probeBin())
		}
		custom := FFmpeg{Bin: "/opt/ffmpeg", ProbeBin: "/opt/ffprobe"}
		if custom.bin() != "/opt/ffmpeg" || custom.probeBin() != "/opt/ffprobe" {
			t.Errorf("overrides = %s/%s", custom.bin(), custom.probeBin())
		}
	})
}

func TestTail(t *testing.T) {
	if got := tail("  short output\n"); got != "short output" {
		t.Errorf("tail = %q", got)
	}
	long := strings.Repeat("x", 500) + "END"
	got := tail(long)
	if len(got) != 400 || !strings.HasSuffix(got, "END") {
		t.Errorf("tail kept %d bytes, suffix ok = %v", len(got), strings.HasSuffix(got, "END"))
	}
}
