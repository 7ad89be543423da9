package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/myschema/myschema/internal/logger"
)

//go:embed descriptor.schema.json
var descriptorSchema []byte

// ErrInvalidDescriptor is returned when a descriptor document fails schema validation
var ErrInvalidDescriptor = errors.New("invalid model descriptor")

var schemaLoader = gojsonschema.NewBytesLoader(descriptorSchema)

// document is the top-level shape of a descriptor file
type document struct {
	Database string  `yaml:"database"`
	Models   []Model `yaml:"models"`
}

// LoadFile reads one descriptor file
func LoadFile(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse validates and decodes a descriptor document. The document-level database
// is applied to models that do not name their own, and audit columns are expanded.
func Parse(data []byte, source string) ([]Model, error) {
	if err := validate(data, source); err != nil {
		return nil, err
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", source, err)
	}

	models := make([]Model, 0, len(doc.Models))
	for _, m := range doc.Models {
		if m.Database == "" {
			m.Database = doc.Database
		}
		models = append(models, WithAudit(m))
	}
	return models, nil
}

// validate checks the document against the embedded JSON Schema
func validate(data []byte, source string) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", source, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", source, ErrInvalidDescriptor, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", source, err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%s: %w: %s", source, ErrInvalidDescriptor, strings.Join(problems, "; "))
	}
	return nil
}

// LoadSet loads every file matched by the glob patterns into a named set.
// Relative patterns are resolved against baseDir. Files are read in sorted order.
func LoadSet(name string, patterns []string, baseDir string) (*Set, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("model set %q matched no descriptor files", name)
	}

	set := &Set{Name: name}
	for _, file := range files {
		models, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		logger.Get().Debug("Loaded model descriptors", "set", name, "file", file, "models", len(models))
		set.Models = append(set.Models, models...)
	}
	return set, nil
}
