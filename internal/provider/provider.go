package provider

import (
	"context"
	"time"

	"github.com/avelsen/vision-consensus/internal/media"
)

// Provider abstracts one vision-capable LLM vendor.
type Provider interface {
	// Query sends a prompt with attached images and returns the complete
	// text answer. Attaching multiple images is the batch form: the model
	// sees all of them in a single call and is expected to answer each.
	Query(ctx context.Context, req Request) (Response, error)
}

// Request contains all inputs for one vision query.
type Request struct {
	Model  string
	Prompt string
	// Images are attached in order; batch answers are matched back to
	// images by this order.
	Images []media.Image
}

// Response contains the result of a vision query.
type Response struct {
	Model    string        `json:"model"`
	Content  string        `json:"content"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// ProviderFunc allows functions to implement Provider (adapter pattern).
// Useful for testing and simple inline implementations.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

func (f ProviderFunc) Query(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
