package output

import (
	"github.com/avelsen/vision-consensus/internal/runner"
)

// Result is the JSON output structure for the CLI and the HTTP API.
type Result struct {
	Prompt     string               `json:"prompt,omitempty"`
	Mode       runner.Mode          `json:"mode"`
	Models     []string             `json:"models"`
	Images     []runner.ImageResult `json:"images"`
	CallsSaved int                  `json:"calls_saved,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
}
