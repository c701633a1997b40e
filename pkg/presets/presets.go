// Package presets holds the inventory filter sets created for load-test
// environments. The default set is embedded; a YAML file with the same
// layout can replace it.
package presets

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

//go:embed filters.yaml
var defaultFilters []byte

// File is the on-disk layout of a preset file.
type File struct {
	Filters []model.Filter `yaml:"filters"`
}

// Default returns the embedded filter set.
func Default() ([]model.Filter, error) {
	filters, err := Parse(defaultFilters)
	if err != nil {
		return nil, fmt.Errorf("embedded presets: %w", err)
	}
	return filters, nil
}

// Load reads a preset file, or the embedded set when path is empty.
func Load(path string) ([]model.Filter, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets file: %w", err)
	}
	filters, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return filters, nil
}

// Parse decodes and validates a preset document.
func Parse(data []byte) ([]model.Filter, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing presets YAML: %w", err)
	}
	if err := validate(f.Filters); err != nil {
		return nil, fmt.Errorf("validating presets: %w", err)
	}
	return f.Filters, nil
}

func validate(filters []model.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("at least one filter is required")
	}
	seen := make(map[string]bool, len(filters))
	for i, f := range filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
		if f.ID != "" {
			return fmt.Errorf("filter %s: id is assigned by the server", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("filter %s: duplicate name", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
