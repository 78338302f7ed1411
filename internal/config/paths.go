package config

import (
	"os"
	"path/filepath"
)

// QuillPath returns the root directory for Quill data.
// It uses $QUILL_PATH if set, otherwise defaults to ~/.quill.
func QuillPath() string {
	if v := os.Getenv("QUILL_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".quill")
	}
	return filepath.Join(home, ".quill")
}

// ConfigPath returns the path to the Quill config file.
func ConfigPath() string {
	return filepath.Join(QuillPath(), "config.jsonc")
}

// DotenvPath returns the path to the Quill .env file.
func DotenvPath() string {
	return filepath.Join(QuillPath(), ".env")
}
