package generate

// ImageRequest - one still-image generation call
type ImageRequest struct {
	ProjectID     string
	Prompt        string
	Style         string
	Quality       string
	ReferenceURLs []string
}

// VideoSubmitRequest - submit one image-to-video job
type VideoSubmitRequest struct {
	ProjectID     string
	ShotID        string
	StartImageURL string
	Prompt        string
	Duration      float64
}

// Video task terminal and transient states as reported by the provider.
const (
	VideoTaskPending    = "pending"
	VideoTaskProcessing = "processing"
	VideoTaskCompleted  = "completed"
	VideoTaskFailed     = "failed"
)

// VideoTaskStatus - provider-side state of one submitted task
type VideoTaskStatus struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Message  string `json:"message,omitempty"`
}

// AudioRequest - one TTS synthesis call
type AudioRequest struct {
	ProjectID string
	ShotID    string
	Text      string
	Voice     string
}
