package llm

import "strings"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID             string   `json:"id"`
	Provider       string   `json:"provider"`
	DisplayName    string   `json:"display_name"`
	ContextWindow  int      `json:"context_window"`
	MaxOutput      *int     `json:"max_output,omitempty"`
	SupportsTools  bool     `json:"supports_tools"`
	SupportsVision bool     `json:"supports_vision"`
	Aliases        []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int { return &v }

// Models is the built-in model catalog. Local models served through ollama
// are listed by their base tag; any "name:variant" tag resolves to the base
// entry.
var Models = []ModelInfo{
	// OpenAI (or an OpenAI-compatible proxy)
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		Aliases: []string{"4o"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		Aliases: []string{"4o-mini"},
	},

	// Ollama (local)
	{
		ID: "gemma3", Provider: "ollama", DisplayName: "Gemma 3",
		ContextWindow: 128000, MaxOutput: intPtr(8192),
		SupportsTools: false, SupportsVision: true,
		Aliases: []string{"gemma"},
	},
	{
		ID: "qwen2.5", Provider: "ollama", DisplayName: "Qwen 2.5",
		ContextWindow: 32768, MaxOutput: intPtr(8192),
		SupportsTools: true, SupportsVision: false,
		Aliases: []string{"qwen"},
	},
	{
		ID: "llama3.2-vision", Provider: "ollama", DisplayName: "Llama 3.2 Vision",
		ContextWindow: 128000, MaxOutput: intPtr(8192),
		SupportsTools: false, SupportsVision: true,
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
// Ollama-style tags ("gemma3:12b") match their base model entry.
func GetModelInfo(modelID string) *ModelInfo {
	base := modelID
	if i := strings.IndexByte(base, ':'); i > 0 {
		base = base[:i]
	}
	for i := range Models {
		if Models[i].ID == modelID || Models[i].ID == base {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID || alias == base {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}
