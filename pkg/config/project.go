package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the optional lumen.yaml read before command-line flags.
type ProjectFile struct {
	Target     string          `yaml:"target,omitempty"`
	Seed       *int64          `yaml:"seed,omitempty"`
	Output     string          `yaml:"output,omitempty"`
	Runtime    []string        `yaml:"runtime,omitempty"`
	LinkerArgs []string        `yaml:"linker_args,omitempty"`
	Warnings   map[string]bool `yaml:"warnings,omitempty"`
}

// LoadProjectFile parses a project file without applying it.
func LoadProjectFile(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}
	return &pf, nil
}

// Apply copies the file's settings into the config and returns the target
// name it asks for, to be handed to SetTarget.
func (pf *ProjectFile) Apply(c *Config) (string, error) {
	if pf.Seed != nil {
		c.Seed = *pf.Seed
	}
	if pf.Output != "" {
		c.OutputName = pf.Output
	}
	c.RuntimeLibs = append(c.RuntimeLibs, pf.Runtime...)
	c.LinkerArgs = append(c.LinkerArgs, pf.LinkerArgs...)

	names := make([]string, 0, len(pf.Warnings))
	for name := range pf.Warnings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, ok := c.WarningMap[name]
		if !ok {
			return "", fmt.Errorf("project file: unknown warning '%s'", name)
		}
		c.SetWarning(w, pf.Warnings[name])
	}
	return pf.Target, nil
}
