package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the optional on-disk override for detector tuning. Only the
// regression keyword list is configurable; thresholds are fixed.
type RulesFile struct {
	RegressionKeywords []string `yaml:"regression_keywords"`
}

// LoadRules reads a YAML rules file and builds a detector from it. A missing
// path returns the default detector.
func LoadRules(path string) (*Detector, error) {
	if path == "" {
		return NewDetector(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}
	return NewDetectorWithKeywords(rf.RegressionKeywords), nil
}
