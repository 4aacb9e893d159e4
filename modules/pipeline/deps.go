package pipeline

import (
	"context"

	"storyreel-server/modules/common/model"
	"storyreel-server/modules/generate"
)

// ProjectStore - the persistence collaborator. Update writes full column
// snapshots (last-write-wins at the document level) and returns the fresh
// document.
type ProjectStore interface {
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Update(ctx context.Context, projectID string, fields map[string]interface{}) (*model.Project, error)
}

// ImageGenerator - synchronous still-image generation collaborator
type ImageGenerator interface {
	Generate(ctx context.Context, req generate.ImageRequest) (string, error)
}

// VideoGenerator - asynchronous submit/poll video generation collaborator.
// Status is batched: one call reports every outstanding task.
type VideoGenerator interface {
	Submit(ctx context.Context, req generate.VideoSubmitRequest) (string, error)
	Status(ctx context.Context, taskIDs []string) (map[string]generate.VideoTaskStatus, error)
}

// AudioGenerator - synchronous narration/dialogue synthesis collaborator
type AudioGenerator interface {
	Synthesize(ctx context.Context, req generate.AudioRequest) (string, error)
}
