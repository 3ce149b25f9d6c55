package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FilterFileName is the optional per-repository filter file.
const FilterFileName = ".repowiki.yaml"

// Filters narrows which repository files the backend considers during
// generation. All fields are forwarded verbatim in the generation envelope.
type Filters struct {
	ExcludedDirs  []string `yaml:"excluded_dirs"`
	ExcludedFiles []string `yaml:"excluded_files"`
	IncludedDirs  []string `yaml:"included_dirs"`
	IncludedFiles []string `yaml:"included_files"`
}

// LoadFilters reads the filter file from dir. A missing file returns empty
// filters.
func LoadFilters(dir string) (Filters, error) {
	var filters Filters

	data, err := os.ReadFile(filepath.Join(dir, FilterFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return filters, nil
		}
		return filters, fmt.Errorf("reading filter file: %w", err)
	}

	if err := yaml.Unmarshal(data, &filters); err != nil {
		return filters, fmt.Errorf("parsing %s: %w", FilterFileName, err)
	}
	return filters, nil
}
