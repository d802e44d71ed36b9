package profile

import (
	"os"
	"testing"
)

func clearGatewayEnvVars() {
	for _, key := range []string{
		"COPILOT_HOST",
		"COPILOT_PORT",
		"COPILOT_LANGUAGE",
		"COPILOT_TITLE_LLM_API_KEY",
		"COPILOT_TITLE_LLM_BASE_URL",
		"COPILOT_TITLE_LLM_MODEL",
		"COPILOT_TITLE_LLM_TIMEOUT_SECONDS",
	} {
		os.Unsetenv(key)
	}
}

func TestProfileDefaults(t *testing.T) {
	clearGatewayEnvVars()

	profile := &Profile{}
	profile.FromEnv()

	tests := []struct {
		name     string
		expected string
		actual   string
	}{
		{"CopilotHost default", "localhost", profile.CopilotHost},
		{"Language default", "en_US", profile.Language},
		{"TitleLLMBaseURL default", "https://api.openai.com/v1", profile.TitleLLMBaseURL},
		{"TitleLLMModel default", "gpt-4o-mini", profile.TitleLLMModel},
		{"TitleLLMAPIKey default", "", profile.TitleLLMAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.actual != tt.expected {
				t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, tt.actual)
			}
		})
	}

	if profile.CopilotPort != 5005 {
		t.Errorf("CopilotPort default: expected 5005, got %d", profile.CopilotPort)
	}
	if profile.IsTitleLLMEnabled() {
		t.Error("IsTitleLLMEnabled should be false without an API key")
	}
}

func TestProfileFromEnv(t *testing.T) {
	clearGatewayEnvVars()
	t.Setenv("COPILOT_HOST", "copilot.internal")
	t.Setenv("COPILOT_PORT", "8900")
	t.Setenv("COPILOT_LANGUAGE", "es_ES")

	profile := &Profile{}
	profile.FromEnv()

	if profile.CopilotHost != "copilot.internal" {
		t.Errorf("expected copilot.internal, got %s", profile.CopilotHost)
	}
	if profile.CopilotPort != 8900 {
		t.Errorf("expected 8900, got %d", profile.CopilotPort)
	}
	if profile.CopilotBaseURL() != "http://copilot.internal:8900" {
		t.Errorf("unexpected base url %s", profile.CopilotBaseURL())
	}
	if profile.Language != "es_ES" {
		t.Errorf("expected es_ES, got %s", profile.Language)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	profile := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "oracle"}
	if err := profile.Validate(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestValidateSQLiteDefaultDSN(t *testing.T) {
	profile := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "sqlite"}
	if err := profile.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.DSN == "" {
		t.Fatal("expected a default sqlite DSN")
	}
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	profile := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "postgres"}
	if err := profile.Validate(); err == nil {
		t.Fatal("expected error when postgres DSN is missing")
	}
}
