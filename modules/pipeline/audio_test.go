package pipeline

import (
	"context"
	"errors"
	"testing"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

func TestAudioStageSynthesizesScriptedShots(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Narration: "Once upon a time", DialogueScript: "Hello there"},
				{ID: "shot2", Narration: "The end"},
				{ID: "shot3"}, // no script, not a candidate
			}},
		},
	}
	store := &fakeStore{project: project}

	var requests []generate.AudioRequest
	audio := audioGenFunc(func(ctx context.Context, req generate.AudioRequest) (string, error) {
		requests = append(requests, req)
		return "https://cdn.test/audio_" + req.ShotID + ".mp3", nil
	})
	runner := NewRunner(store, nil, nil, audio, nil, nil)

	run, err := runner.StartStage("p1", model.StageAudio, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	if events[0].Total != 2 {
		t.Errorf("start total = %d, want 2 scripted shots", events[0].Total)
	}
	last := events[len(events)-1]
	if last.Type != EventDone || last.Counts.Generated != 2 || last.Counts.Failed != 0 {
		t.Fatalf("done = %+v counts = %+v", last, last.Counts)
	}

	// shot1 needs narration and dialogue tracks, shot2 narration only
	if len(requests) != 3 {
		t.Fatalf("synthesize calls = %d, want 3", len(requests))
	}

	asset, ok := project.AudioAssets["shot1"]
	if !ok || asset.NarrationURL == "" || asset.DialogueURL == "" {
		t.Errorf("shot1 asset = %+v", asset)
	}
	asset = project.AudioAssets["shot2"]
	if asset.NarrationURL == "" || asset.DialogueURL != "" {
		t.Errorf("shot2 asset = %+v", asset)
	}
}

func TestAudioStageSkipsCoveredShots(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		AudioAssets: map[string]model.AudioAsset{
			"shot1": {ShotID: "shot1", NarrationURL: "https://cdn.test/n.mp3"},
			"shot2": {ShotID: "shot2", NarrationURL: "https://cdn.test/n.mp3"},
		},
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Narration: "covered"},
				{ID: "shot2", Narration: "covered", DialogueScript: "but dialogue is missing"},
			}},
		},
	}
	store := &fakeStore{project: project}
	audio := audioGenFunc(func(ctx context.Context, req generate.AudioRequest) (string, error) {
		return "https://cdn.test/new.mp3", nil
	})
	runner := NewRunner(store, nil, nil, audio, nil, nil)

	run, err := runner.StartStage("p1", model.StageAudio, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	// shot1 is fully covered and skips; shot2's existing asset lacks the
	// dialogue track its script asks for, so it regenerates.
	last := events[len(events)-1]
	if last.Counts.Skipped != 1 || last.Counts.Generated != 1 {
		t.Fatalf("done counts = %+v", *last.Counts)
	}
	if asset := project.AudioAssets["shot2"]; asset.DialogueURL == "" {
		t.Errorf("shot2 asset missing dialogue: %+v", asset)
	}
}

func TestAudioStagePartialSynthesisFails(t *testing.T) {
	project := &model.Project{
		ID: "p1",
		Segments: []model.Segment{
			{ID: "seg1", Shots: []model.Shot{
				{ID: "shot1", Narration: "works", DialogueScript: "breaks"},
			}},
		},
	}
	store := &fakeStore{project: project}
	audio := audioGenFunc(func(ctx context.Context, req generate.AudioRequest) (string, error) {
		if req.Text == "breaks" {
			return "", errors.New("voice unavailable")
		}
		return "https://cdn.test/n.mp3", nil
	})
	runner := NewRunner(store, nil, nil, audio, nil, nil)

	run, err := runner.StartStage("p1", model.StageAudio, StageOptions{})
	if err != nil {
		t.Fatal(err)
	}
	events := collectEvents(t, run)

	last := events[len(events)-1]
	if last.Counts.Failed != 1 || last.Counts.Generated != 0 {
		t.Fatalf("done counts = %+v", *last.Counts)
	}
	if _, ok := project.AudioAssets["shot1"]; ok {
		t.Error("failed shot should not get a partial asset")
	}
}
