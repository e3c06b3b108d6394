package timeline

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestCompose_Windows verifies running-sum window computation.
func TestCompose_Windows(t *testing.T) {
	segments := []Segment{
		{SceneID: "hook", Duration: 3.0},
		{SceneID: "body_1", Duration: 4.0},
		{SceneID: "cta", Duration: 2.0},
	}

	buckets := Compose(segments, nil)

	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}

	wantWindows := [][2]float64{{0.0, 3.0}, {3.0, 7.0}, {7.0, 9.0}}
	for i, want := range wantWindows {
		if !almostEqual(buckets[i].Start, want[0]) || !almostEqual(buckets[i].End, want[1]) {
			t.Errorf("bucket %d: window [%v,%v), want [%v,%v)",
				i, buckets[i].Start, buckets[i].End, want[0], want[1])
		}
	}
}

// TestCompose_MidpointAssignment verifies a boundary-straddling caption
// goes entirely to the scene containing its midpoint.
func TestCompose_MidpointAssignment(t *testing.T) {
	segments := []Segment{
		{SceneID: "scene_1", Duration: 3.0},
		{SceneID: "scene_2", Duration: 4.0},
		{SceneID: "scene_3", Duration: 2.0},
	}
	// Spans [2.8, 3.3]: midpoint 3.05 lands in scene_2's window [3.0, 7.0).
	captions := []Caption{
		{Start: 2.8, End: 3.3, Text: "straddles the boundary"},
	}

	buckets := Compose(segments, captions)

	if len(buckets[0].Captions) != 0 {
		t.Errorf("scene_1 should have no captions, got %d", len(buckets[0].Captions))
	}
	if len(buckets[1].Captions) != 1 {
		t.Fatalf("scene_2 should have 1 caption, got %d", len(buckets[1].Captions))
	}
	if buckets[1].Captions[0].Text != "straddles the boundary" {
		t.Errorf("unexpected caption in scene_2: %q", buckets[1].Captions[0].Text)
	}
}

// TestCompose_BoundaryExtension verifies the last caption of a scene is
// extended to the window end only when it ends within tolerance of it.
func TestCompose_BoundaryExtension(t *testing.T) {
	segments := []Segment{
		{SceneID: "scene_1", Duration: 3.0},
		{SceneID: "scene_2", Duration: 4.0},
	}

	t.Run("within tolerance is extended", func(t *testing.T) {
		captions := []Caption{
			{Start: 4.0, End: 6.6, Text: "ends 0.4s before the boundary"},
		}

		buckets := Compose(segments, captions)

		got := buckets[1].Captions[0].End
		if !almostEqual(got, 7.0) {
			t.Errorf("caption end = %v, want extension to 7.0", got)
		}
	})

	t.Run("outside tolerance is unchanged", func(t *testing.T) {
		captions := []Caption{
			{Start: 4.0, End: 5.0, Text: "ends 2.0s before the boundary"},
		}

		buckets := Compose(segments, captions)

		got := buckets[1].Captions[0].End
		if !almostEqual(got, 5.0) {
			t.Errorf("caption end = %v, want unchanged 5.0", got)
		}
	})

	t.Run("only the last caption is extended", func(t *testing.T) {
		captions := []Caption{
			{Start: 3.2, End: 4.5, Text: "first"},
			{Start: 4.6, End: 6.8, Text: "second"},
		}

		buckets := Compose(segments, captions)

		if got := buckets[1].Captions[0].End; !almostEqual(got, 4.5) {
			t.Errorf("first caption end = %v, want unchanged 4.5", got)
		}
		if got := buckets[1].Captions[1].End; !almostEqual(got, 7.0) {
			t.Errorf("last caption end = %v, want extension to 7.0", got)
		}
	})
}

// TestCompose_InputOrderIndependence verifies bucketing does not depend
// on the caption stream's ordering.
func TestCompose_InputOrderIndependence(t *testing.T) {
	segments := []Segment{
		{SceneID: "hook", Duration: 2.0},
		{SceneID: "body_1", Duration: 5.0},
		{SceneID: "cta", Duration: 3.0},
	}
	ordered := []Caption{
		{Start: 0.2, End: 1.8, Text: "a"},
		{Start: 2.1, End: 3.4, Text: "b"},
		{Start: 3.5, End: 5.0, Text: "c"},
		{Start: 5.1, End: 6.9, Text: "d"},
		{Start: 7.2, End: 9.8, Text: "e"},
	}
	shuffled := []Caption{ordered[3], ordered[0], ordered[4], ordered[2], ordered[1]}

	a := Compose(segments, ordered)
	b := Compose(segments, shuffled)

	if len(a) != len(b) {
		t.Fatalf("bucket count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if len(a[i].Captions) != len(b[i].Captions) {
			t.Fatalf("bucket %d caption count mismatch: %d vs %d",
				i, len(a[i].Captions), len(b[i].Captions))
		}
		for j := range a[i].Captions {
			if a[i].Captions[j] != b[i].Captions[j] {
				t.Errorf("bucket %d caption %d differs: %+v vs %+v",
					i, j, a[i].Captions[j], b[i].Captions[j])
			}
		}
	}
}

// TestCompose_EmptyBucket verifies a silent scene yields a valid empty
// bucket rather than stealing neighbors' captions.
func TestCompose_EmptyBucket(t *testing.T) {
	segments := []Segment{
		{SceneID: "hook", Duration: 2.0},
		{SceneID: "pause", Duration: 1.5},
		{SceneID: "cta", Duration: 2.0},
	}
	captions := []Caption{
		{Start: 0.1, End: 1.9, Text: "hook line"},
		{Start: 3.6, End: 5.4, Text: "cta line"},
	}

	buckets := Compose(segments, captions)

	if len(buckets[0].Captions) != 1 {
		t.Errorf("hook should have 1 caption, got %d", len(buckets[0].Captions))
	}
	if len(buckets[1].Captions) != 0 {
		t.Errorf("pause should be empty, got %d captions", len(buckets[1].Captions))
	}
	if len(buckets[2].Captions) != 1 {
		t.Errorf("cta should have 1 caption, got %d", len(buckets[2].Captions))
	}
}

// TestBuildPlan verifies asset joining and the missing-image rule.
func TestBuildPlan(t *testing.T) {
	segments := []Segment{
		{SceneID: "hook", AudioPath: "/out/audio/hook.mp3", Duration: 3.0},
		{SceneID: "body_1", AudioPath: "/out/audio/body_1.mp3", Duration: 4.0},
		{SceneID: "cta", AudioPath: "/out/audio/cta.mp3", Duration: 2.0},
	}
	buckets := Compose(segments, []Caption{
		{Start: 0.5, End: 2.5, Text: "opening"},
	})
	images := map[string]string{
		"hook": "/out/images/hook.png",
		"cta":  "/out/images/cta.png",
		// body_1 has no image
	}
	videos := map[string]string{
		"hook": "/out/video/hook.mp4",
	}

	plan := BuildPlan(segments, buckets, images, videos)

	if len(plan.Scenes) != 2 {
		t.Fatalf("expected 2 renderable scenes, got %d", len(plan.Scenes))
	}
	if plan.Scenes[0].SceneID != "hook" || plan.Scenes[1].SceneID != "cta" {
		t.Errorf("unexpected scene order: %q, %q", plan.Scenes[0].SceneID, plan.Scenes[1].SceneID)
	}
	if plan.Scenes[0].VideoPath != "/out/video/hook.mp4" {
		t.Errorf("hook video not joined: %q", plan.Scenes[0].VideoPath)
	}
	if plan.Scenes[1].VideoPath != "" {
		t.Errorf("cta should have no video, got %q", plan.Scenes[1].VideoPath)
	}
	if len(plan.Scenes[0].Captions) != 1 {
		t.Errorf("hook captions not joined: %d", len(plan.Scenes[0].Captions))
	}
	if !almostEqual(plan.Duration, 9.0) {
		t.Errorf("plan duration = %v, want 9.0", plan.Duration)
	}
	// The dropped scene still counts toward the timeline; its audio is
	// in the concatenated narration whether rendered or not.
	if !almostEqual(plan.Scenes[1].Start, 7.0) {
		t.Errorf("cta start = %v, want 7.0", plan.Scenes[1].Start)
	}
}
