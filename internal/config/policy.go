package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunable heuristics for confirmation handling. Empty fields
// fall back to the built-in defaults when resolved.
type Policy struct {
	ConfirmationKeywords []string `yaml:"confirmation_keywords"`
	ActionVerbs          []string `yaml:"action_verbs"`
	TimePattern          string   `yaml:"time_pattern"`
	MinComplexLength     int      `yaml:"min_complex_length"`

	// MaxConfirmationLength caps the rune length of a reply read as a confirmation
	MaxConfirmationLength int `yaml:"max_confirmation_length"`
	// QuestionMarkers mark an utterance as a question, never a confirmation
	QuestionMarkers []string `yaml:"question_markers"`
}

// LoadPolicy reads a YAML policy file. An empty path yields an empty policy.
func LoadPolicy(path string) (Policy, error) {
	var p Policy
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks the policy values that can be checked without defaults
func (p Policy) Validate() error {
	if p.TimePattern != "" {
		if _, err := regexp.Compile(p.TimePattern); err != nil {
			return fmt.Errorf("invalid time_pattern: %w", err)
		}
	}
	if p.MinComplexLength < 0 {
		return fmt.Errorf("min_complex_length must not be negative")
	}
	if p.MaxConfirmationLength < 0 {
		return fmt.Errorf("max_confirmation_length must not be negative")
	}
	return nil
}

// Merge returns p with empty fields taken from defaults
func (p Policy) Merge(defaults Policy) Policy {
	if len(p.ConfirmationKeywords) == 0 {
		p.ConfirmationKeywords = defaults.ConfirmationKeywords
	}
	if len(p.ActionVerbs) == 0 {
		p.ActionVerbs = defaults.ActionVerbs
	}
	if p.TimePattern == "" {
		p.TimePattern = defaults.TimePattern
	}
	if p.MinComplexLength == 0 {
		p.MinComplexLength = defaults.MinComplexLength
	}
	if p.MaxConfirmationLength == 0 {
		p.MaxConfirmationLength = defaults.MaxConfirmationLength
	}
	if len(p.QuestionMarkers) == 0 {
		p.QuestionMarkers = defaults.QuestionMarkers
	}
	return p
}

// YAML renders the policy as YAML
func (p Policy) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
