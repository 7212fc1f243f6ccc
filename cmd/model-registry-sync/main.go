// Command model-registry-sync lists models available from the configured
// vendors so the hardcoded model catalog can be kept current. Dev tool; the
// service never calls this at runtime.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

type ModelRecord struct {
	Source string `json:"source"` // "openai" | "google"
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

type openAIListModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type googleListModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func main() {
	var (
		outPath        string
		openaiEnabled  bool
		googleEnabled  bool
		timeoutSeconds int
	)
	flag.StringVar(&outPath, "out", "", "output file path (defaults to stdout)")
	flag.BoolVar(&openaiEnabled, "openai", true, "fetch OpenAI models (requires OPENAI_API_KEY)")
	flag.BoolVar(&googleEnabled, "google", true, "fetch Google models (requires GOOGLE_API_KEY)")
	flag.IntVar(&timeoutSeconds, "timeout", 20, "HTTP timeout in seconds")
	flag.Parse()

	ctx := context.Background()
	client := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	var all []ModelRecord
	var errs []error

	if openaiEnabled {
		records, err := fetchOpenAI(ctx, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("openai: %w", err))
		}
		all = append(all, records...)
	}

	if googleEnabled {
		records, err := fetchGoogle(ctx, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("google: %w", err))
		}
		all = append(all, records...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Source != all[j].Source {
			return all[i].Source < all[j].Source
		}
		return all[i].ID < all[j].ID
	})

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if len(all) == 0 && len(errs) > 0 {
		os.Exit(1)
	}
}

func fetchOpenAI(ctx context.Context, client *http.Client) ([]ModelRecord, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.openai.com/v1/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	body, err := doJSON(client, req)
	if err != nil {
		return nil, err
	}

	var parsed openAIListModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	var records []ModelRecord
	for _, m := range parsed.Data {
		// The list endpoint doesn't flag vision support; filter to the
		// families known to accept image input.
		if !strings.HasPrefix(m.ID, "gpt-4o") && !strings.HasPrefix(m.ID, "gpt-4.1") {
			continue
		}
		records = append(records, ModelRecord{Source: "openai", ID: m.ID})
	}
	return records, nil
}

func fetchGoogle(ctx context.Context, client *http.Client) ([]ModelRecord, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY not set")
	}

	url := "https://generativelanguage.googleapis.com/v1beta/models?key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	body, err := doJSON(client, req)
	if err != nil {
		return nil, err
	}

	var parsed googleListModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	var records []ModelRecord
	for _, m := range parsed.Models {
		supported := false
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		records = append(records, ModelRecord{
			Source: "google",
			ID:     strings.TrimPrefix(m.Name, "models/"),
			Name:   m.DisplayName,
		})
	}
	return records, nil
}

func doJSON(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
