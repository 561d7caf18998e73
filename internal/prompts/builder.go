// Package prompts holds the LLM prompt presets. Every preset ships as a
// built-in default and can be overridden by dropping a JSON file with
// the preset's name into the prompts directory.
package prompts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Preset names.
const (
	RAG             = "rag"
	IOCEnrichment   = "ioc_enrichment"
	IOCSummary      = "ioc_description_summary"
	AlertAIAnalysis = "alert_ai_analysis"
)

// Preset is a system prompt plus a user template with {named}
// placeholders.
type Preset struct {
	SystemPrompt       string `json:"system_prompt"`
	UserPromptTemplate string `json:"user_prompt_template"`
}

// Builder resolves presets and interpolates templates.
type Builder struct {
	dir string

	mu     sync.Mutex
	loaded map[string]Preset
}

// NewBuilder creates a Builder reading overrides from dir. An empty dir
// means built-ins only.
func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir, loaded: make(map[string]Preset)}
}

// Get returns the preset by name, preferring a JSON override on disk.
// Unknown names yield an error rather than an empty prompt.
func (b *Builder) Get(name string) (Preset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.loaded[name]; ok {
		return p, nil
	}

	p, ok := defaults[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown prompt preset %q", name)
	}

	if b.dir != "" {
		path := filepath.Join(b.dir, name+".json")
		if data, err := os.ReadFile(path); err == nil {
			var override Preset
			if err := json.Unmarshal(data, &override); err != nil {
				return Preset{}, fmt.Errorf("parsing prompt file %s: %w", path, err)
			}
			if override.SystemPrompt != "" {
				p.SystemPrompt = override.SystemPrompt
			}
			if override.UserPromptTemplate != "" {
				p.UserPromptTemplate = override.UserPromptTemplate
			}
		}
	}

	b.loaded[name] = p
	return p, nil
}

// Build resolves a preset and fills its user template.
func (b *Builder) Build(name string, vars map[string]string) (system, user string, err error) {
	p, err := b.Get(name)
	if err != nil {
		return "", "", err
	}
	return p.SystemPrompt, Interpolate(p.UserPromptTemplate, vars), nil
}

// Interpolate replaces {name} placeholders with values from vars.
// Unmatched placeholders are left as-is so a missing variable is
// visible in the output instead of silently vanishing.
func Interpolate(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
