package provider

import (
	"fmt"
	"sort"
)

// Vendor identifies which adapter serves a model.
type Vendor int

const (
	VendorOpenAI Vendor = iota
	VendorAnthropic
	VendorGoogle
)

// KnownModels maps model names to their vendor.
// Add new vision-capable models here as they become available.
var KnownModels = map[string]Vendor{
	// OpenAI
	"gpt-4o":       VendorOpenAI,
	"gpt-4o-mini":  VendorOpenAI,
	"gpt-4.1":      VendorOpenAI,
	"gpt-4.1-mini": VendorOpenAI,

	// Anthropic
	"claude-sonnet-4-5": VendorAnthropic,
	"claude-haiku-4-5":  VendorAnthropic,
	"claude-opus-4-5":   VendorAnthropic,

	// Google
	"gemini-2.5-pro":        VendorGoogle,
	"gemini-2.5-flash":      VendorGoogle,
	"gemini-2.5-flash-lite": VendorGoogle,
}

// ForModel constructs the adapter serving a known model.
func ForModel(model string) (Provider, error) {
	vendor, ok := KnownModels[model]
	if !ok {
		available := make([]string, 0, len(KnownModels))
		for m := range KnownModels {
			available = append(available, m)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("unknown model %q; available models: %v", model, available)
	}

	switch vendor {
	case VendorOpenAI:
		return NewOpenAI()
	case VendorAnthropic:
		return NewAnthropic()
	case VendorGoogle:
		return NewGoogle()
	default:
		return nil, fmt.Errorf("unhandled vendor for model %s", model)
	}
}

// BuildRegistry initializes providers for every requested model.
func BuildRegistry(models []string) (*Registry, error) {
	registry := NewRegistry()

	seen := make(map[string]bool)
	for _, model := range models {
		if seen[model] {
			continue
		}
		seen[model] = true

		p, err := ForModel(model)
		if err != nil {
			return nil, fmt.Errorf("initializing provider for %s: %w", model, err)
		}
		registry.Register(model, p)
	}

	return registry, nil
}
