package models

import (
	"context"
	"strings"
	"testing"

	"github.com/dohr-michael/quill/internal/config"
)

func TestResolveAPIKey_Direct(t *testing.T) {
	key, err := ResolveAPIKey(config.ProviderConfig{Driver: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-test" {
		t.Errorf("key = %q, want sk-test", key)
	}
}

func TestResolveAPIKey_EnvReference(t *testing.T) {
	t.Setenv("TEST_MODEL_KEY", "sk-from-env")
	key, err := ResolveAPIKey(config.ProviderConfig{Driver: "openai", APIKey: "${TEST_MODEL_KEY}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-from-env" {
		t.Errorf("key = %q, want sk-from-env", key)
	}
}

func TestResolveAPIKey_DriverDefault(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "sk-mistral")
	key, err := ResolveAPIKey(config.ProviderConfig{Driver: "mistral"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "sk-mistral" {
		t.Errorf("key = %q, want sk-mistral", key)
	}
}

func TestResolveAPIKey_UnknownDriver(t *testing.T) {
	if _, err := ResolveAPIKey(config.ProviderConfig{Driver: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestCreateModel_UnknownDriver(t *testing.T) {
	_, err := CreateModel(context.Background(), config.ProviderConfig{Driver: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("err = %v, want unknown driver", err)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry(config.ModelsConfig{Default: "main"})
	if _, err := r.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegistry_NoDefault(t *testing.T) {
	r := NewRegistry(config.ModelsConfig{})
	if _, err := r.Default(context.Background()); err == nil {
		t.Error("expected error when no default configured")
	}
}

func TestRegistry_GetCachesError(t *testing.T) {
	r := NewRegistry(config.ModelsConfig{
		Default: "main",
		Providers: map[string]config.ProviderConfig{
			"main": {Driver: "bogus"},
		},
	})
	_, err1 := r.Get(context.Background(), "main")
	_, err2 := r.Get(context.Background(), "main")
	if err1 == nil || err2 == nil {
		t.Fatal("expected errors for bogus driver")
	}
	if err1.Error() != err2.Error() {
		t.Errorf("errors differ: %v vs %v", err1, err2)
	}
}

func TestHandleError_Classification(t *testing.T) {
	cases := map[string]string{
		"401 unauthorized":        "authentication failed",
		"429 too many requests":   "rate limited",
		"context length exceeded": "context too long",
		"model not found":         "model not found",
		"connection refused":      "connection error",
	}
	for input, want := range cases {
		got := HandleError(errTest(input))
		if !strings.Contains(got.Error(), want) {
			t.Errorf("HandleError(%q) = %v, want to contain %q", input, got, want)
		}
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
