package classifier

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Taxonomy is the ordered category tree the classifier scores against.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

// Category groups related subcategories under one label.
type Category struct {
	Name          string        `yaml:"name"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Subcategory holds the keyword entries for one document kind.
type Subcategory struct {
	Name     string         `yaml:"name"`
	Keywords []KeywordEntry `yaml:"keywords"`
}

// KeywordEntry is either a plain keyword or a weighted regular expression.
type KeywordEntry struct {
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
	IsRegex bool    `yaml:"is_regex"`
}

// UnmarshalYAML accepts a bare string or a {pattern, weight, is_regex} mapping.
func (k *KeywordEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		k.Pattern = value.Value
		k.Weight = 1
		k.IsRegex = false
		return nil
	case yaml.MappingNode:
		type plain KeywordEntry
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		if p.Pattern == "" {
			return fmt.Errorf("line %d: keyword entry without pattern", value.Line)
		}
		if p.Weight <= 0 {
			p.Weight = 1
		}
		*k = KeywordEntry(p)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported keyword entry", value.Line)
	}
}

// ParseTaxonomy decodes a YAML taxonomy.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaxonomy, err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidTaxonomy)
	}
	for _, c := range t.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: category without name", ErrInvalidTaxonomy)
		}
	}
	return &t, nil
}

// DefaultTaxonomy returns the embedded legal document taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomy)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy: %v", err))
	}
	return t
}

// LoadTaxonomy reads a taxonomy file, or returns the embedded one when path is empty.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return ParseTaxonomy(data)
}

// PatternCount is the number of keyword entries across all subcategories.
func (t *Taxonomy) PatternCount() int {
	n := 0
	for _, c := range t.Categories {
		for _, s := range c.Subcategories {
			n += len(s.Keywords)
		}
	}
	return n
}
