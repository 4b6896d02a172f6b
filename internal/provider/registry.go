package provider

import "strings"

// Family identifies which wire protocol serves a model.
type Family string

// Supported model families.
const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
)

// ModelInfo describes one entry of the model catalog, surfaced by the
// model-listing endpoints.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
	MaxTokens   int    `json:"maxTokens"`
	Vision      bool   `json:"vision"`
}

// catalog lists the models this deployment knows how to talk to. Admin
// policy (allowedModels) further restricts what clients may pick.
var catalog = []ModelInfo{
	{
		ID:          "gpt-5-nano",
		Name:        "GPT-5 Nano",
		Provider:    string(FamilyOpenAI),
		Description: "Fast, low-cost general model",
		MaxTokens:   16384,
		Vision:      true,
	},
	{
		ID:          "gpt-5-mini",
		Name:        "GPT-5 Mini",
		Provider:    string(FamilyOpenAI),
		Description: "Balanced quality and latency",
		MaxTokens:   16384,
		Vision:      true,
	},
	{
		ID:          "gpt-4o-mini",
		Name:        "GPT-4o Mini",
		Provider:    string(FamilyOpenAI),
		Description: "Previous-generation fast model",
		MaxTokens:   16384,
		Vision:      true,
	},
	{
		ID:          "claude-sonnet-4-20250514",
		Name:        "Claude Sonnet 4",
		Provider:    string(FamilyAnthropic),
		Description: "Strong reasoning and long context",
		MaxTokens:   64000,
		Vision:      true,
	},
	{
		ID:          "claude-3-5-haiku-20241022",
		Name:        "Claude 3.5 Haiku",
		Provider:    string(FamilyAnthropic),
		Description: "Fast Anthropic model",
		MaxTokens:   8192,
		Vision:      false,
	},
}

// families indexes the catalog by model id.
var families = func() map[string]Family {
	m := make(map[string]Family, len(catalog))
	for _, info := range catalog {
		m[info.ID] = Family(info.Provider)
	}
	return m
}()

// FamilyFor resolves the wire family for a model id. Unknown ids starting
// with "claude-" route to the anthropic family; everything else defaults to
// the openai-compatible protocol.
func FamilyFor(model string) Family {
	if f, ok := families[model]; ok {
		return f
	}
	if strings.HasPrefix(model, "claude-") {
		return FamilyAnthropic
	}
	return FamilyOpenAI
}

// Catalog returns a copy of the known-model list.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for a model id, if present.
func Lookup(model string) (ModelInfo, bool) {
	for _, info := range catalog {
		if info.ID == model {
			return info, true
		}
	}
	return ModelInfo{}, false
}
