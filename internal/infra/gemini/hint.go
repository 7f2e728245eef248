// Package gemini asks a Gemini model to pick categories for records the
// keyword rules could not place.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-import/internal/resolve"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// Hint implements resolve.CategoryHint.
type Hint struct {
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewHint creates a hint backed by the Gemini API. Credentials come from the
// environment (GOOGLE_API_KEY or Vertex AI settings).
func NewHint(ctx context.Context, model string) (*Hint, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewHint: create genai client: %w", err)
	}

	return &Hint{generate: func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: prompt}},
			},
		}
		resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return resp.Text(), nil
	}}, nil
}

// Suggest returns one candidate name (or "") per request, in order.
func (h *Hint) Suggest(ctx context.Context, reqs []resolve.HintRequest, candidates []string) ([]string, error) {
	raw, err := h.generate(ctx, buildPrompt(reqs, candidates))
	if err != nil {
		return nil, fmt.Errorf("Suggest: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("Suggest: empty response from model")
	}

	var out []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("Suggest: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if len(out) != len(reqs) {
		return nil, fmt.Errorf("Suggest: got %d answers for %d transactions", len(out), len(reqs))
	}
	return out, nil
}

func buildPrompt(reqs []resolve.HintRequest, candidates []string) string {
	var b strings.Builder
	b.WriteString("You categorise personal finance transactions from Chinese payment and bank statements.\n\n")
	b.WriteString("Use ONLY the following category names:\n")
	for _, c := range candidates {
		b.WriteString("  - " + c + "\n")
	}

	b.WriteString("\nTransactions (one per line, numbered):\n")
	for i, r := range reqs {
		fmt.Fprintf(&b, "%d. description=%q type=%q\n", i+1, r.Description, r.TypeHint)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. Answer with a JSON array of strings, one entry per transaction, in order.\n")
	b.WriteString("2. Each entry must be EXACTLY one of the category names above, or \"\" if none fits.\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

var _ resolve.CategoryHint = (*Hint)(nil)
