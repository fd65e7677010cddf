package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

// Dataset is a file of mixed-subject screen events and liveness stamps
type Dataset struct {
	Name     string                  `yaml:"name"`
	Events   []timebin.Event         `yaml:"events"`
	Liveness []timebin.LivenessStamp `yaml:"liveness"`
}

// LoadYAML loads a dataset from a YAML file
func LoadYAML(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	return LoadYAMLFromBytes(data)
}

// LoadYAMLFromBytes loads a dataset from byte data
func LoadYAMLFromBytes(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset YAML: %w", err)
	}

	if err := ValidateDataset(&ds); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}

	return &ds, nil
}

// ValidateDataset checks that every record names its subject
func ValidateDataset(ds *Dataset) error {
	if len(ds.Events) == 0 && len(ds.Liveness) == 0 {
		return fmt.Errorf("dataset has no records")
	}
	for i, e := range ds.Events {
		if e.Subject == "" {
			return fmt.Errorf("event %d: subject is required", i)
		}
	}
	for i, l := range ds.Liveness {
		if l.Subject == "" {
			return fmt.Errorf("liveness stamp %d: subject is required", i)
		}
	}
	return nil
}

// Source returns an in-memory source over the dataset's subjects
func (ds *Dataset) Source() *MemorySource {
	return NewMemorySource(GroupBySubject(ds.Events, ds.Liveness))
}
