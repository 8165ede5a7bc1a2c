package cmd

import (
	"testing"

	"github.com/timvw/command-center/internal/config"
)

func TestServerURL(t *testing.T) {
	tests := []struct {
		bind string
		port int
		flag string
		want string
	}{
		{"127.0.0.1", 3000, "", "http://127.0.0.1:3000"},
		{"0.0.0.0", 8080, "", "http://127.0.0.1:8080"},
		{"", 3000, "", "http://127.0.0.1:3000"},
		{"10.0.0.5", 3000, "", "http://10.0.0.5:3000"},
		{"127.0.0.1", 3000, "http://remote:9000", "http://remote:9000"},
	}
	for _, tt := range tests {
		flagServer = tt.flag
		got := serverURL(&config.Config{Bind: tt.bind, Port: tt.port})
		if got != tt.want {
			t.Errorf("serverURL(%q, %d, flag=%q) = %q, want %q", tt.bind, tt.port, tt.flag, got, tt.want)
		}
	}
	flagServer = ""
}

func TestGetEvaluator(t *testing.T) {
	t.Setenv("AZURE_RESOURCE_NAME", "")

	if _, err := getEvaluator(&config.Config{Provider: "bogus", APIKey: "k"}); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := getEvaluator(&config.Config{Provider: "anthropic"}); err == nil {
		t.Error("missing API key should fail")
	}

	e, err := getEvaluator(&config.Config{Provider: "openai", APIKey: "k", Model: "claude-sonnet-4-5"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if e.Provider() != "openai" || e.Model() != "gpt-4o-mini" {
		t.Errorf("openai evaluator = %s/%s", e.Provider(), e.Model())
	}

	e, err = getEvaluator(&config.Config{Provider: "anthropic", APIKey: "k"})
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if e.Model() != "claude-sonnet-4-5" {
		t.Errorf("anthropic model = %s", e.Model())
	}
}

func TestAzureHeaders(t *testing.T) {
	t.Setenv("AZURE_RESOURCE_NAME", "")
	if h := azureHeaders(&config.Config{APIKey: "k", BaseURL: "https://api.anthropic.com/"}); len(h) != 0 {
		t.Errorf("non-azure headers = %v", h)
	}
	h := azureHeaders(&config.Config{APIKey: "k", BaseURL: "https://res.services.ai.azure.com/anthropic/"})
	if h["api-key"] != "k" {
		t.Errorf("azure headers = %v", h)
	}
}
