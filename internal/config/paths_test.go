package config

import (
	"path/filepath"
	"testing"
)

func TestQuillPath_EnvOverride(t *testing.T) {
	t.Setenv("QUILL_PATH", "/tmp/quill-test")

	if got := QuillPath(); got != "/tmp/quill-test" {
		t.Errorf("QuillPath: got %q", got)
	}
	if got := ConfigPath(); got != filepath.Join("/tmp/quill-test", "config.jsonc") {
		t.Errorf("ConfigPath: got %q", got)
	}
	if got := DotenvPath(); got != filepath.Join("/tmp/quill-test", ".env") {
		t.Errorf("DotenvPath: got %q", got)
	}
}

func TestQuillPath_Default(t *testing.T) {
	t.Setenv("QUILL_PATH", "")

	got := QuillPath()
	if got == "" {
		t.Fatal("QuillPath returned empty string")
	}
	if filepath.Base(got) != ".quill" {
		t.Errorf("expected .quill dir, got %q", got)
	}
}
