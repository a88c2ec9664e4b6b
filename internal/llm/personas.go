package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is used for chatbot ids with no persona of their own.
const DefaultSystemPrompt = "You are a virtual sweetheart."

// Personas maps chatbot ids to the system prompt that sets their behaviour.
type Personas struct {
	Default  string           `yaml:"default"`
	Chatbots map[int64]string `yaml:"chatbots"`
}

// DefaultPersonas returns the built-in Adam (1) and Eve (2) personas.
func DefaultPersonas() *Personas {
	return &Personas{
		Default: DefaultSystemPrompt,
		Chatbots: map[int64]string{
			1: "You are Adam, a caring and playful virtual boyfriend. " +
				"Answer warmly, remember what the user told you earlier in the conversation, " +
				"and keep every reply to one or two short sentences.",
			2: "You are Eve, an affectionate and witty virtual girlfriend. " +
				"Answer warmly, remember what the user told you earlier in the conversation, " +
				"and keep every reply to one or two short sentences.",
		},
	}
}

// LoadPersonas reads a YAML persona file and layers it over the built-in set.
// An empty path returns the built-in set unchanged.
func LoadPersonas(path string) (*Personas, error) {
	personas := DefaultPersonas()
	if path == "" {
		return personas, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file: %w", err)
	}

	var file Personas
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse personas file %s: %w", path, err)
	}

	if file.Default != "" {
		personas.Default = file.Default
	}
	for id, prompt := range file.Chatbots {
		personas.Chatbots[id] = prompt
	}
	return personas, nil
}

// SystemPrompt returns the prompt for chatbotID, or the default prompt when
// the id is unmapped.
func (p *Personas) SystemPrompt(chatbotID int64) string {
	if prompt, ok := p.Chatbots[chatbotID]; ok {
		return prompt
	}
	if p.Default == "" {
		return DefaultSystemPrompt
	}
	return p.Default
}
