package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StudentProfile holds per-student settings loaded from YAML. Everything here
// flows into lesson prompts as plain-text context.
type StudentProfile struct {
	Name       string   `yaml:"name"`
	GradeLevel string   `yaml:"grade_level"`
	Interests  []string `yaml:"interests"`
	Struggles  []string `yaml:"struggles"`
}

// LoadProfile loads a student profile from the given YAML file.
func LoadProfile(path string) (*StudentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile config: %w", err)
	}

	var p StudentProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile config: %w", err)
	}

	return &p, nil
}

// PromptContext renders the profile as a short plain-text block for lesson
// generation. Empty fields are omitted; an empty profile renders "".
func (p *StudentProfile) PromptContext() string {
	if p == nil {
		return ""
	}
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Student name: "+p.Name)
	}
	if p.GradeLevel != "" {
		parts = append(parts, "Grade level: "+p.GradeLevel)
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "Interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.Struggles) > 0 {
		parts = append(parts, "Known struggles: "+strings.Join(p.Struggles, ", "))
	}
	return strings.Join(parts, "\n")
}
