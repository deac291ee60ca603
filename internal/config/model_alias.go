package config

import "strings"

// ModelAliasSource is the narrow read surface alias resolution needs, so both
// *Store and adapter-side config interfaces can be passed directly.
type ModelAliasSource interface {
	ModelAliases() map[string]string
}

// DefaultModelAliases maps common OpenAI model ids onto DeepSeek models.
// User-configured aliases overlay these.
func DefaultModelAliases() map[string]string {
	return map[string]string{
		"gpt-3.5-turbo": "deepseek-chat",
		"gpt-4":         "deepseek-chat",
		"gpt-4-turbo":   "deepseek-chat",
		"gpt-4.1":       "deepseek-chat",
		"gpt-4.1-mini":  "deepseek-chat",
		"gpt-4o":        "deepseek-chat",
		"gpt-4o-mini":   "deepseek-chat",
		"gpt-5":         "deepseek-chat",
		"gpt-5-codex":   "deepseek-reasoner",
		"o1":            "deepseek-reasoner",
		"o1-mini":       "deepseek-reasoner",
		"o1-preview":    "deepseek-reasoner",
		"o3":            "deepseek-reasoner",
		"o3-mini":       "deepseek-reasoner",
		"o4-mini":       "deepseek-reasoner",
	}
}

// ResolveModel maps a requested model id to a DeepSeek model. Direct DeepSeek
// ids pass through, then configured aliases, then family heuristics for ids
// the alias table does not cover. Unknown models fail resolution.
func ResolveModel(src ModelAliasSource, model string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(model))
	if name == "" {
		return "", false
	}
	if _, _, ok := GetModelConfig(name); ok {
		return name, true
	}
	aliases := DefaultModelAliases()
	if src != nil {
		aliases = src.ModelAliases()
	}
	if target, ok := aliases[name]; ok {
		if resolved := strings.ToLower(strings.TrimSpace(target)); resolved != "" {
			return resolved, true
		}
	}
	switch {
	case strings.HasPrefix(name, "o1") || strings.HasPrefix(name, "o3") || strings.HasPrefix(name, "o4"):
		return "deepseek-reasoner", true
	case strings.Contains(name, "codex"):
		return "deepseek-reasoner", true
	case strings.HasPrefix(name, "gpt"):
		return "deepseek-chat", true
	}
	return "", false
}

// OpenAIModelByID returns model metadata for /v1/models/{id}. Alias ids are
// echoed back under the requested id so clients see the model they asked for.
func OpenAIModelByID(src ModelAliasSource, id string) (ModelInfo, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ModelInfo{}, false
	}
	for _, m := range DeepSeekModels {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	resolved, ok := ResolveModel(src, id)
	if !ok {
		return ModelInfo{}, false
	}
	for _, m := range DeepSeekModels {
		if m.ID == resolved {
			alias := m
			alias.ID = id
			return alias, true
		}
	}
	return ModelInfo{}, false
}
