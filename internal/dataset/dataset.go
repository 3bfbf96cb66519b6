// Package dataset loads ground-truth evaluation datasets from JSON or YAML
// files and memoizes them by modification time.
package dataset

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ragbench/rag-bench/internal/pkg/errors"
)

// Sample is one ground-truth entry: a query, its expected answer, and the
// documents judged relevant to it.
type Sample struct {
	ID                  string   `json:"id" yaml:"id"`
	Query               string   `json:"query" yaml:"query"`
	ExpectedAnswer      string   `json:"expected_answer" yaml:"expected_answer"`
	RelevantDocumentIDs []string `json:"relevant_document_ids" yaml:"relevant_document_ids"`
}

// RelevantSet returns the sample's relevant document IDs as a set.
func (s *Sample) RelevantSet() map[string]bool {
	set := make(map[string]bool, len(s.RelevantDocumentIDs))
	for _, id := range s.RelevantDocumentIDs {
		set[id] = true
	}
	return set
}

// Dataset is a named collection of ground-truth samples.
type Dataset struct {
	Name    string   `json:"name" yaml:"name"`
	Samples []Sample `json:"samples" yaml:"samples"`
}

// Parse decodes dataset content. JSON when the filename ends in .json,
// YAML otherwise (YAML is a superset of JSON, but keeping the JSON path
// explicit gives better error messages for the common case).
func Parse(data []byte, filename string) (*Dataset, error) {
	var ds Dataset

	if strings.EqualFold(filepath.Ext(filename), ".json") {
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, errors.DatasetError("parsing JSON dataset", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return nil, errors.DatasetError("parsing YAML dataset", err)
		}
	}

	if err := validate(&ds); err != nil {
		return nil, err
	}
	if ds.Name == "" {
		ds.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return &ds, nil
}

func validate(ds *Dataset) error {
	if len(ds.Samples) == 0 {
		return errors.ValidationError("dataset has no samples")
	}
	for i := range ds.Samples {
		s := &ds.Samples[i]
		if s.Query == "" {
			return errors.ValidationErrorf("sample %d has an empty query", i)
		}
		if s.ID == "" {
			// Auto-number samples; IDs only need to be stable within a run.
			s.ID = "sample-" + strconv.Itoa(i)
		}
	}
	return nil
}
