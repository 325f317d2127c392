package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FEATURE_REQUEST", "add rate limiting")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_REPOSITORY", "octo/app")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AUTOPR_DATA_DIR", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider openai, got %q", cfg.Provider)
	}
	if cfg.BaseBranch != "main" {
		t.Errorf("expected default base branch main, got %q", cfg.BaseBranch)
	}
	if cfg.MaxTestFixAttempts != 3 {
		t.Errorf("expected default fix attempts 3, got %d", cfg.MaxTestFixAttempts)
	}
	if cfg.StepTests {
		t.Error("expected step tests disabled by default")
	}
	if cfg.ServerAddr != ":7080" {
		t.Errorf("expected default addr :7080, got %q", cfg.ServerAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTOPR_BASE_BRANCH", "develop")
	t.Setenv("AUTOPR_MAX_TEST_FIX_ATTEMPTS", "5")
	t.Setenv("AUTOPR_STEP_TESTS", "true")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseBranch != "develop" {
		t.Errorf("expected base branch develop, got %q", cfg.BaseBranch)
	}
	if cfg.MaxTestFixAttempts != 5 {
		t.Errorf("expected fix attempts 5, got %d", cfg.MaxTestFixAttempts)
	}
	if !cfg.StepTests {
		t.Error("expected step tests enabled")
	}
	if !cfg.TelegramEnabled() {
		t.Error("expected Telegram to be enabled")
	}
	if cfg.SlackEnabled() {
		t.Error("expected Slack to be disabled")
	}
}

func TestValidateMissingFeature(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FEATURE_REQUEST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing FEATURE_REQUEST")
	}
}

func TestValidateProviderKeyMismatch(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing ANTHROPIC_API_KEY")
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_PROVIDER", "cohere")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}
