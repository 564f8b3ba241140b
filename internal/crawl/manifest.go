// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Manifest is the YAML run summary written beside the metadata log after
// each crawl, so operators can audit what a run did without replaying
// its logs.
type Manifest struct {
	CompletedAt time.Time `yaml:"completed_at"`
	Elapsed     string    `yaml:"elapsed"`
	TargetCount int       `yaml:"target_count"`
	Downloaded  int       `yaml:"downloaded"`
	Failed      int       `yaml:"failed"`
	Rejected    int       `yaml:"rejected"`
	Duplicates  int       `yaml:"duplicates"`
	Exhausted   bool      `yaml:"exhausted"`
	Cursor      string    `yaml:"cursor"`
}

// WriteManifest marshals m to path, replacing any previous run's summary.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling run manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run manifest: %w", err)
	}
	return nil
}
