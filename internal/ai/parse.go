package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"meetdraft/internal/model"
)

// DraftResponse is the structured payload expected from the generation
// API.
type DraftResponse struct {
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	ActionItems []model.ActionItem `json:"action_items"`
	KeyPoints   []string           `json:"key_points"`
}

// ParseDraftResponse parses the model output, tolerating a markdown code
// fence around the JSON. A response without subject and body is useless
// and therefore an error.
func ParseDraftResponse(content string) (*DraftResponse, error) {
	var resp DraftResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		extracted := extractJSONFromMarkdown(content)
		if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse generation response as JSON: %w", err)
		}
	}

	resp.Subject = strings.TrimSpace(resp.Subject)
	resp.Body = strings.TrimSpace(resp.Body)
	if resp.Subject == "" && resp.Body == "" {
		return nil, fmt.Errorf("generation response carries neither subject nor body")
	}

	// Drop action items with no task text; the scorer penalizes vague
	// ones but an empty task is noise.
	items := resp.ActionItems[:0]
	for _, item := range resp.ActionItems {
		if strings.TrimSpace(item.Task) != "" {
			items = append(items, item)
		}
	}
	resp.ActionItems = items

	return &resp, nil
}

// extractJSONFromMarkdown strips a ```json fence if the model wrapped
// its output in one.
func extractJSONFromMarkdown(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
