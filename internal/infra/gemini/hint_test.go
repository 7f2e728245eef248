package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/statement-import/internal/resolve"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `["a",""]`, `["a",""]`},
		{"fenced", "```json\n[\"a\"]\n```", `["a"]`},
		{"chatter", "Sure! [\"a\", \"b\"] hope this helps", `["a", "b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt([]resolve.HintRequest{{Description: "红包", TypeHint: "微信红包"}}, []string{"Gifts", "Pets"})

	for _, want := range []string{"  - Gifts\n", "  - Pets\n", `1. description="红包" type="微信红包"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSuggest(t *testing.T) {
	h := &Hint{generate: func(ctx context.Context, prompt string) (string, error) {
		return "```json\n[\"Gifts\", \"\"]\n```", nil
	}}

	got, err := h.Suggest(context.Background(), make([]resolve.HintRequest, 2), []string{"Gifts"})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(got) != 2 || got[0] != "Gifts" || got[1] != "" {
		t.Errorf("Suggest() = %v", got)
	}
}

func TestSuggest_CountMismatch(t *testing.T) {
	h := &Hint{generate: func(ctx context.Context, prompt string) (string, error) {
		return `["Gifts"]`, nil
	}}

	if _, err := h.Suggest(context.Background(), make([]resolve.HintRequest, 3), []string{"Gifts"}); err == nil {
		t.Fatal("expected error for short answer")
	}
}

func TestSuggest_GenerateError(t *testing.T) {
	h := &Hint{generate: func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("quota")
	}}

	if _, err := h.Suggest(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
