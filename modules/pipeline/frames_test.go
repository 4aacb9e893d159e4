package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

func framesProject() *model.Project {
	return &model.Project{
		ID: "p1",
		Elements: map[string]*model.Element{
			"el_hero":  {ID: "el_hero", Name: "Hero", Type: model.ElementCharacter, Description: "hero", ImageURL: "https://cdn.test/hero.webp"},
			"el_later": {ID: "el_later", Name: "Later", Type: model.ElementScene, Description: "not generated yet"},
		},
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Name: "Opening", Prompt: "hero walks in", ReferenceImages: []string{"el_hero", "el_later", "el_missing"}, Status: model.ShotPending},
				{ID: "shot2", Name: "Failing", Prompt: "this one breaks", Status: model.ShotPending},
			}},
		},
	}
}

func TestFramesStageStatusTransitions(t *testing.T) {
	project := framesProject()
	store := &fakeStore{project: project}

	var capturedRefs []string
	gen := imageGenFunc(func(ctx context.Context, req generate.ImageRequest) (string, error) {
		if req.Prompt == "" {
			t.Error("frame prompt should not be empty")
		}
		if len(req.ReferenceURLs) > 0 {
			capturedRefs = req.ReferenceURLs
		}
		if strings.Contains(req.Prompt, "this one breaks") {
			return "", errors.New("generation failed")
		}
		return "https://cdn.test/frame.webp", nil
	})
	runner := NewRunner(store, gen, nil, nil, nil, nil)

	run, err := runner.StartStage("p1", model.StageFrames, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	last := events[len(events)-1]
	if last.Type != EventDone || last.Counts.Generated != 1 || last.Counts.Failed != 1 {
		t.Fatalf("done = %+v counts = %+v", last, last.Counts)
	}

	// Only generated references travel along; ungenerated and unknown ids
	// are dropped silently.
	if len(capturedRefs) != 1 || capturedRefs[0] != "https://cdn.test/hero.webp" {
		t.Errorf("reference urls = %v", capturedRefs)
	}

	shot1 := project.FindShot("shot1")
	if shot1.Status != model.ShotFrameReady || shot1.StartImageURL != "https://cdn.test/frame.webp" {
		t.Errorf("shot1 = %+v", shot1)
	}
	if len(shot1.StartImageHistory) != 1 {
		t.Errorf("shot1 history length = %d", len(shot1.StartImageHistory))
	}
	if shot2 := project.FindShot("shot2"); shot2.Status != model.ShotFrameFailed {
		t.Errorf("shot2 status = %s", shot2.Status)
	}
}

func TestFramesStageNoShots(t *testing.T) {
	store := &fakeStore{project: &model.Project{
		ID: "p1",
		Elements: map[string]*model.Element{
			"el_a": {ID: "el_a", Name: "A", Type: model.ElementCharacter, ImageURL: "https://cdn.test/a.webp"},
			"el_b": {ID: "el_b", Name: "B", Type: model.ElementScene, ImageURL: "https://cdn.test/b.webp"},
		},
	}}
	runner := NewRunner(store, okImageGen("u"), nil, nil, nil, nil)

	run, err := runner.StartStage("p1", model.StageFrames, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	got := eventTypes(events)
	if len(got) != 2 || got[0] != EventStart || got[1] != EventDone {
		t.Fatalf("expected immediate done for a project without shots, got %v", got)
	}
	done := events[1]
	if done.Counts.Total != 0 || done.Counts.Failed != 0 || done.Counts.Generated != 0 {
		t.Errorf("done counts = %+v", *done.Counts)
	}
}

func TestRegenerateShotFrameTargetsOneShot(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Prompt: "a", StartImageURL: "https://cdn.test/a.webp", Status: model.ShotFrameReady},
				{ID: "shot2", Prompt: "b", StartImageURL: "https://cdn.test/b.webp", Status: model.ShotFrameReady},
			}},
		},
	}
	store := &fakeStore{project: project}
	runner := NewRunner(store, okImageGen("https://cdn.test/regen.webp"), nil, nil, nil, nil)

	runID, err := runner.RegenerateShotFrame("p1", "shot2")
	if err != nil {
		t.Fatal(err)
	}
	if runID == "" {
		t.Fatal("expected a run id")
	}

	run := runner.ActiveRun("p1")
	if run != nil {
		collectEvents(t, run)
	}

	if shot := project.FindShot("shot1"); shot.StartImageURL != "https://cdn.test/a.webp" {
		t.Errorf("shot1 frame regenerated unexpectedly: %s", shot.StartImageURL)
	}
	if shot := project.FindShot("shot2"); shot.StartImageURL != "https://cdn.test/regen.webp" {
		t.Errorf("shot2 frame = %s, want regenerated", shot.StartImageURL)
	}
}
