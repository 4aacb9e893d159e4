package model

import (
	"sort"
	"time"
)

// ElementType - kind of reusable project element
type ElementType string

const (
	ElementCharacter ElementType = "character"
	ElementScene     ElementType = "scene"
	ElementObject    ElementType = "object"
)

// ShotStatus - shot state machine:
// pending → frame_ready | frame_failed → video_processing → video_ready | video_failed.
// Failed states stay terminal until an explicit regeneration request.
type ShotStatus string

const (
	ShotPending         ShotStatus = "pending"
	ShotFrameReady      ShotStatus = "frame_ready"
	ShotFrameFailed     ShotStatus = "frame_failed"
	ShotVideoProcessing ShotStatus = "video_processing"
	ShotVideoReady      ShotStatus = "video_ready"
	ShotVideoFailed     ShotStatus = "video_failed"
)

// Stage - per-project pipeline stage. At most one non-idle value per project.
type Stage string

const (
	StageIdle     Stage = "idle"
	StagePlanning Stage = "planning"
	StageElements Stage = "elements"
	StageFrames   Stage = "frames"
	StageVideos   Stage = "videos"
	StageAudio    Stage = "audio"
	StageComplete Stage = "complete"
)

// ImageRecord - one generated still in an image history
type ImageRecord struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
	IsFavorite bool      `json:"is_favorite"`
}

// Element - a character/scene/object asset
type Element struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         ElementType   `json:"type"`
	Description  string        `json:"description"`
	VoiceProfile string        `json:"voice_profile,omitempty"`
	ImageURL     string        `json:"image_url,omitempty"`
	ImageHistory []ImageRecord `json:"image_history,omitempty"`
}

// FavoriteRecord - returns the favorited history record, if any.
// At most one record may be favorited; while one exists, ImageURL must not
// be overwritten by a new generation.
func (e *Element) FavoriteRecord() *ImageRecord {
	for i := range e.ImageHistory {
		if e.ImageHistory[i].IsFavorite {
			return &e.ImageHistory[i]
		}
	}
	return nil
}

// Shot - one unit of a storyboard segment
type Shot struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Type              string        `json:"type,omitempty"`
	Description       string        `json:"description"`
	Prompt            string        `json:"prompt"`
	VideoPrompt       string        `json:"video_prompt,omitempty"`
	Narration         string        `json:"narration,omitempty"`
	DialogueScript    string        `json:"dialogue_script,omitempty"`
	Duration          float64       `json:"duration"`
	ReferenceImages   []string      `json:"reference_images,omitempty"`
	StartImageURL     string        `json:"start_image_url,omitempty"`
	StartImageHistory []ImageRecord `json:"start_image_history,omitempty"`
	VideoURL          string        `json:"video_url,omitempty"`
	VideoTaskID       string        `json:"video_task_id,omitempty"`
	Status            ShotStatus    `json:"status"`
}

// Segment - ordered group of shots
type Segment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Shots       []Shot `json:"shots"`
}

// AudioAsset - narration/dialogue audio for one shot
type AudioAsset struct {
	ShotID       string    `json:"shot_id"`
	NarrationURL string    `json:"narration_url,omitempty"`
	DialogueURL  string    `json:"dialogue_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// VisualAsset - project-level visual asset record
type VisualAsset struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage - one chat transcript entry
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Project - the project document. Owned by the orchestrator while a pipeline
// run is active, by the editing layer otherwise. Never two writers at once.
type Project struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Brief        map[string]string     `json:"brief,omitempty"`
	Elements     map[string]*Element   `json:"elements,omitempty"`
	Segments     []Segment             `json:"segments,omitempty"`
	VisualAssets []VisualAsset         `json:"visual_assets,omitempty"`
	AudioAssets  map[string]AudioAsset `json:"audio_assets,omitempty"`
	Chat         []ChatMessage         `json:"chat,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// OrderedElements - elements sorted by name then id (map iteration order is
// not deterministic and event ordering must be)
func (p *Project) OrderedElements() []*Element {
	elements := make([]*Element, 0, len(p.Elements))
	for _, el := range p.Elements {
		elements = append(elements, el)
	}
	sort.Slice(elements, func(i, j int) bool {
		if elements[i].Name != elements[j].Name {
			return elements[i].Name < elements[j].Name
		}
		return elements[i].ID < elements[j].ID
	})
	return elements
}

// AllShots - every shot in segment order, as pointers into the document
func (p *Project) AllShots() []*Shot {
	var shots []*Shot
	for si := range p.Segments {
		for i := range p.Segments[si].Shots {
			shots = append(shots, &p.Segments[si].Shots[i])
		}
	}
	return shots
}

// FindShot - lookup by shot id
func (p *Project) FindShot(shotID string) *Shot {
	for _, shot := range p.AllShots() {
		if shot.ID == shotID {
			return shot
		}
	}
	return nil
}

// FindElement - lookup by element id
func (p *Project) FindElement(elementID string) *Element {
	if p.Elements == nil {
		return nil
	}
	return p.Elements[elementID]
}

// ProcessingShots - shots in video_processing without a video_url.
// The background poller reconstructs its task set from this on every sweep.
func (p *Project) ProcessingShots() []*Shot {
	var shots []*Shot
	for _, shot := range p.AllShots() {
		if shot.Status == ShotVideoProcessing && shot.VideoURL == "" && shot.VideoTaskID != "" {
			shots = append(shots, shot)
		}
	}
	return shots
}
