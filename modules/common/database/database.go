package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"storyreel-server/modules/common/config"
	"storyreel-server/modules/common/model"
)

// Client wraps the Supabase project store. A project is one row in the
// "projects" table; brief/elements/segments/assets/chat are JSONB columns.
// Writes are last-write-wins per column, so callers always send full,
// freshly-merged snapshots of the columns they touch, never deltas.
type Client struct {
	supabase *supabase.Client
}

// NewClient - create the store client
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{supabase: supabaseClient}
}

// Get - fetch a project document by id
func (c *Client) Get(ctx context.Context, projectID string) (*model.Project, error) {
	var projects []model.Project

	data, _, err := c.supabase.From("projects").
		Select("*", "exact", false).
		Eq("id", projectID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}

	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse project response: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("project not found: %s", projectID)
	}

	return &projects[0], nil
}

// Update - write the given columns and return the fresh document.
// fields maps column name → full new value (e.g. "segments" → []model.Segment).
func (c *Client) Update(ctx context.Context, projectID string, fields map[string]interface{}) (*model.Project, error) {
	if len(fields) == 0 {
		return c.Get(ctx, projectID)
	}

	updateData := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updateData[k] = v
	}
	updateData["updated_at"] = "now()"

	_, _, err := c.supabase.From("projects").
		Update(updateData, "", "").
		Eq("id", projectID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return c.Get(ctx, projectID)
}

// Insert - create a new project row
func (c *Client) Insert(ctx context.Context, project *model.Project) error {
	_, _, err := c.supabase.From("projects").
		Insert(project, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	log.Printf("✅ Project created: %s", project.ID)
	return nil
}
