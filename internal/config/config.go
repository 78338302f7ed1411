package config

import "time"

// Config is the root configuration for Quill.
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Store   StoreConfig   `json:"store"`
	Auth    AuthConfig    `json:"auth"`
	Models  ModelsConfig  `json:"models"`
	Chat    ChatConfig    `json:"chat"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Dir string `json:"dir"` // data directory (default: $QUILL_PATH/data)
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	Secret string `json:"secret"` // HS256 signing secret, or ${{ .Env.QUILL_AUTH_SECRET }}
	Issuer string `json:"issuer,omitempty"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "mistral", "ollama", "gemini"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	APIKey    string         `json:"api_key,omitempty"` // direct key or ${{ .Env.VAR }} template
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ChatConfig holds orchestrator settings.
type ChatConfig struct {
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	ReplyTimeout  Duration `json:"reply_timeout,omitempty"` // reasoner time budget per request
	MaxToolRounds int      `json:"max_tool_rounds,omitempty"`
	ListLimit     int      `json:"list_limit,omitempty"` // conversations listing page size
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
