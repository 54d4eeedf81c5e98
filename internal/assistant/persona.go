package assistant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona configures what the assistant is told and what the customer sees on escalation.
type Persona struct {
	Name            string `yaml:"name"`
	SystemPrompt    string `yaml:"system_prompt"`
	Acknowledgement string `yaml:"acknowledgement"`
	// EscalationHint describes the escalate_to_operator tool to the model.
	EscalationHint string `yaml:"escalation_hint"`
}

const defaultSystemPrompt = `You are the support assistant of the helpdesk. Customers write to you about the hosting services they use.

Rules:
1. If the customer asks to speak to an operator, a human or the support team, call the escalate_to_operator tool and write nothing else.
2. Otherwise be helpful, professional and concise. If you do not know the answer, say so and suggest waiting for a support agent.
3. Keep replies under 150 words unless more detail is needed.
4. Always be polite and customer-focused.`

// DefaultPersona is used when no persona file is configured.
func DefaultPersona() Persona {
	return Persona{
		Name:            "Helpdesk assistant",
		SystemPrompt:    defaultSystemPrompt,
		Acknowledgement: "Connecting to operator...",
		EscalationHint:  "Hand the conversation to a human support operator. Use when the customer asks for a human or when you cannot help.",
	}
}

// LoadPersona reads a YAML persona file. Empty fields fall back to DefaultPersona.
// An empty path returns the default persona.
func LoadPersona(path string) (Persona, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPersona(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file: %w", err)
	}
	return ParsePersona(raw)
}

// ParsePersona decodes a YAML persona document.
func ParsePersona(raw []byte) (Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Persona{}, fmt.Errorf("decode persona: %w", err)
	}
	return p.withDefaults(), nil
}

func (p Persona) withDefaults() Persona {
	def := DefaultPersona()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = def.Name
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		p.SystemPrompt = def.SystemPrompt
	}
	if strings.TrimSpace(p.Acknowledgement) == "" {
		p.Acknowledgement = def.Acknowledgement
	}
	if strings.TrimSpace(p.EscalationHint) == "" {
		p.EscalationHint = def.EscalationHint
	}
	return p
}
