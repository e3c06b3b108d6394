// Package timeline turns per-scene audio segments and a flat caption
// stream into an ordered, time-aligned render plan.
//
// Scene windows come from a running sum of measured audio durations.
// Captions are bucketed by midpoint, never split across scenes, and the
// last caption of a scene is stretched to the scene boundary when it
// ends close enough to it.
package timeline

import "sort"

// BoundaryTolerance is how close (in seconds) a scene's last caption
// must end to the scene boundary to be extended to it. Without the
// extension the narration keeps going for a beat after the caption
// disappears, which reads as a glitch.
const BoundaryTolerance = 1.0

// Segment is one scene's narration audio with its measured duration.
// Segments arrive in scene order; their order defines the timeline.
type Segment struct {
	// SceneID joins this segment to the scene's other assets.
	SceneID string

	// AudioPath is the scene's narration audio file.
	AudioPath string

	// Duration is the measured audio length in seconds.
	Duration float64
}

// Caption is one transcribed span, timed against the concatenated
// narration audio.
type Caption struct {
	// Start is the caption's start offset in seconds.
	Start float64

	// End is the caption's end offset in seconds.
	End float64

	// Text is the caption content.
	Text string
}

// Bucket holds the captions assigned to one scene, in scene order.
// An empty bucket is valid: a scene with no distinguishable caption
// segment, such as silence.
type Bucket struct {
	// SceneID is the owning scene.
	SceneID string

	// Start is the scene window's absolute start in seconds.
	Start float64

	// End is the scene window's absolute end in seconds.
	End float64

	// Captions are the spans whose midpoints fall inside the window,
	// sorted by start time.
	Captions []Caption
}

// Compose assigns captions to per-scene buckets.
//
// Each scene's absolute window is the running sum of prior segment
// durations: window[i] = [cursor, cursor+duration_i). A caption belongs
// to the window containing its midpoint ((start+end)/2); a caption that
// straddles a boundary is not split, it goes entirely to the midpoint's
// scene. After assignment, a non-empty bucket whose last caption ends
// within BoundaryTolerance of the window end has that caption extended
// to exactly the window end.
//
// The result is deterministic and independent of caption input order.
// Buckets are never merged or reordered.
func Compose(segments []Segment, captions []Caption) []Bucket {
	buckets := make([]Bucket, len(segments))
	cursor := 0.0
	for i, seg := range segments {
		buckets[i] = Bucket{
			SceneID: seg.SceneID,
			Start:   cursor,
			End:     cursor + seg.Duration,
		}
		cursor += seg.Duration
	}

	// Transcription systems do not guarantee ordering; sort a copy so
	// assignment and boundary extension see a canonical sequence.
	sorted := make([]Caption, len(captions))
	copy(sorted, captions)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Start != sorted[b].Start {
			return sorted[a].Start < sorted[b].Start
		}
		if sorted[a].End != sorted[b].End {
			return sorted[a].End < sorted[b].End
		}
		return sorted[a].Text < sorted[b].Text
	})

	for _, c := range sorted {
		mid := (c.Start + c.End) / 2
		for i := range buckets {
			if buckets[i].Start <= mid && mid < buckets[i].End {
				buckets[i].Captions = append(buckets[i].Captions, c)
				break
			}
		}
	}

	for i := range buckets {
		n := len(buckets[i].Captions)
		if n == 0 {
			continue
		}
		last := &buckets[i].Captions[n-1]
		if buckets[i].End-last.End < BoundaryTolerance {
			last.End = buckets[i].End
		}
	}

	return buckets
}

// Scene is one render-plan entry: a scene's audio, visual, and captions
// placed on the absolute timeline.
type Scene struct {
	// SceneID is the owning scene.
	SceneID string

	// AudioPath is the scene's narration audio.
	AudioPath string

	// ImagePath is the scene's background still. Required.
	ImagePath string

	// VideoPath is an optional motion clip overriding the still.
	VideoPath string

	// Start is the scene's absolute start in seconds.
	Start float64

	// End is the scene's absolute end in seconds.
	End float64

	// Captions are the scene's caption spans.
	Captions []Caption
}

// Plan is the full ordered render plan handed to a renderer.
type Plan struct {
	// Scenes are the render entries in timeline order.
	Scenes []Scene

	// Duration is the total planned length in seconds.
	Duration float64
}

// BuildPlan joins the bucketed captions with per-scene images and
// optional video clips into a render plan.
//
// Scenes missing an image are dropped: the scene id set defines what
// exists downstream, and a scene with no visual cannot be rendered.
// Buckets must come from Compose over the same segments.
func BuildPlan(segments []Segment, buckets []Bucket, images map[string]string, videos map[string]string) Plan {
	plan := Plan{Scenes: make([]Scene, 0, len(segments))}

	for i, seg := range segments {
		img := images[seg.SceneID]
		if img == "" {
			continue
		}

		scene := Scene{
			SceneID:   seg.SceneID,
			AudioPath: seg.AudioPath,
			ImagePath: img,
			VideoPath: videos[seg.SceneID],
		}
		if i < len(buckets) {
			scene.Start = buckets[i].Start
			scene.End = buckets[i].End
			scene.Captions = buckets[i].Captions
		}
		plan.Scenes = append(plan.Scenes, scene)
	}

	for _, seg := range segments {
		plan.Duration += seg.Duration
	}
	return plan
}
