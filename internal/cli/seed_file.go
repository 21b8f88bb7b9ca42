package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/sla-timekeeper/internal/service"
)

type seedFile struct {
	Definitions []seedEntry `yaml:"definitions"`
}

type seedEntry struct {
	service.SeedDefinition `yaml:",inline"`
	Active                 *bool `yaml:"active"`
}

// LoadSeedFile reads SLA definitions from a YAML file. Definitions are active
// unless they set active: false.
func LoadSeedFile(path string) ([]service.SeedDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes seed YAML.
func ParseSeed(raw []byte) ([]service.SeedDefinition, error) {
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(file.Definitions) == 0 {
		return nil, fmt.Errorf("seed file has no definitions")
	}

	seeds := make([]service.SeedDefinition, 0, len(file.Definitions))
	for i, entry := range file.Definitions {
		if entry.Name == "" {
			return nil, fmt.Errorf("definition %d: name is required", i+1)
		}
		entry.IsActive = entry.Active == nil || *entry.Active
		seeds = append(seeds, entry.SeedDefinition)
	}
	return seeds, nil
}
