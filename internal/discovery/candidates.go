package discovery

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"hr-toolkit/internal/model"
)

// CandidateFile is the on-disk form of a discovery run.
type CandidateFile struct {
	Collection string         `yaml:"collection"`
	Candidates []model.Record `yaml:"candidates"`
}

// ParseCandidates reads a YAML (or JSON) candidate file.
func ParseCandidates(r io.Reader) (*CandidateFile, error) {
	var f CandidateFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if f.Collection == "" {
		return nil, errors.New("candidates file: collection is required")
	}
	return &f, nil
}
