// Package render cuts the final video with ffmpeg. It implements the
// pipeline's renderer, audio joiner, and audio prober collaborators.
package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"podshorts/pipeline"
	"podshorts/timeline"
)

// FFmpeg shells out to ffmpeg/ffprobe binaries.
type FFmpeg struct {
	Bin      string // ffmpeg binary, default "ffmpeg"
	ProbeBin string // ffprobe binary, default "ffprobe"
}

// NewFFmpeg uses the ffmpeg and ffprobe binaries from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Bin: "ffmpeg", ProbeBin: "ffprobe"}
}

func (f *FFmpeg) bin() string {
	if f.Bin != "" {
		return f.Bin
	}
	return "ffmpeg"
}

func (f *FFmpeg) probeBin() string {
	if f.ProbeBin != "" {
		return f.ProbeBin
	}
	return "ffprobe"
}

// Join concatenates audio files losslessly via the concat demuxer.
func (f *FFmpeg) Join(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("join: no inputs")
	}

	list, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	defer os.Remove(list.Name())

	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	return f.run(ctx,
		"-y", "-f", "concat", "-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		output,
	)
}

// Render builds one clip per scene (still image or motion clip plus
// the scene's narration), concatenates them, and mixes in background
// music when configured. Captions ship separately as SRT; they are not
// burned in.
func (f *FFmpeg) Render(ctx context.Context, job pipeline.RenderJob) (float64, error) {
	if len(job.Plan.Scenes) == 0 {
		return 0, fmt.Errorf("render: empty plan")
	}

	workDir, err := os.MkdirTemp("", "render-*")
	if err != nil {
		return 0, fmt.Errorf("render: %w", err)
	}
	defer os.RemoveAll(workDir)

	clips := make([]string, 0, len(job.Plan.Scenes))
	for i, scene := range job.Plan.Scenes {
		clip := filepath.Join(workDir, fmt.Sprintf("scene_%03d.mp4", i))
		if err := f.sceneClip(ctx, scene, clip, job.Width, job.Height, job.FPS); err != nil {
			return 0, fmt.Errorf("render scene %s: %w", scene.SceneID, err)
		}
		clips = append(clips, clip)
	}

	concat := job.Output
	if job.BGMPath != "" {
		concat = filepath.Join(workDir, "concat.mp4")
	}
	if err := f.concatClips(ctx, clips, concat); err != nil {
		return 0, err
	}
	if job.BGMPath != "" {
		if err := f.mixBGM(ctx, concat, job.BGMPath, job.Output); err != nil {
			return 0, err
		}
	}

	return f.Probe(ctx, job.Output)
}

func (f *FFmpeg) sceneClip(ctx context.Context, scene timeline.Scene, output string, width, height, fps int) error {
	duration := scene.End - scene.Start
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", width, height, width, height)

	args := []string{"-y"}
	if scene.VideoPath != "" {
		args = append(args,
			"-stream_loop", "-1", "-i", scene.VideoPath,
			"-i", scene.AudioPath,
			"-map", "0:v", "-map", "1:a",
		)
	} else {
		args = append(args,
			"-loop", "1", "-i", scene.ImagePath,
			"-i", scene.AudioPath,
			"-map", "0:v", "-map", "1:a",
		)
	}
	args = append(args,
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-vf", scale,
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264", "-c:a", "aac",
		"-shortest",
		output,
	)
	return f.run(ctx, args...)
}

func (f *FFmpeg) concatClips(ctx context.Context, clips []string, output string) error {
	list, err := os.CreateTemp("", "clips-*.txt")
	if err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	defer os.Remove(list.Name())

	for _, c := range clips {
		fmt.Fprintf(list, "file '%s'\n", c)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("concat: %w", err)
	}

	return f.run(ctx,
		"-y", "-f", "concat", "-safe", "0",
		"-i", list.Name(),
		"-c", "copy",
		output,
	)
}

func (f *FFmpeg) mixBGM(ctx context.Context, video, bgm, output string) error {
	return f.run(ctx,
		"-y",
		"-i", video,
		"-stream_loop", "-1", "-i", bgm,
		"-filter_complex", "[1:a]volume=0.15[bgm];[0:a][bgm]amix=inputs=2:duration=first[a]",
		"-map", "0:v", "-map", "[a]",
		"-c:v", "copy", "-c:a", "aac",
		output,
	)
}

// Probe returns a media file's duration in seconds.
func (f *FFmpeg) Probe(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, f.probeBin(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration: %w", path, err)
	}
	return duration, nil
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", f.bin(), args[len(args)-1], err, tail(string(out)))
	}
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		s = s[len(s)-400:]
	}
	return s
}
