package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SeedHints carries optional free-form guidance for the initializer worker
// — project conventions, preferred feature ordering, anything a human wants
// the one-shot seeding pass to take into account. The core never
// interprets these fields itself; it only locates and parses the file. The
// initializer's argv does not carry the file's path.
type SeedHints struct {
	Description string   `yaml:"description"`
	Priorities  []string `yaml:"priorities"`
	Exclude     []string `yaml:"exclude"`
}

// seedHintsFileName is the conventional location the initializer worker is
// documented to check for optional seeding guidance.
const seedHintsFileName = ".autocoder/seed-hints.yaml"

// LoadSeedHints reads the optional seed-hints file from a project
// directory. A missing file is not an error — it returns a zero-value
// SeedHints and found=false.
func LoadSeedHints(projectDir string) (hints SeedHints, found bool, err error) {
	path := filepath.Join(projectDir, seedHintsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SeedHints{}, false, nil
		}
		return SeedHints{}, false, fmt.Errorf("reading seed hints %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &hints); err != nil {
		return SeedHints{}, false, fmt.Errorf("parsing seed hints %s: %w", path, err)
	}
	return hints, true, nil
}
