package edgar

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed concept_mappings.json
var conceptMappingsJSON []byte

// ConceptMappingFile is the layout of concept_mappings.json
type ConceptMappingFile struct {
	Description string                       `json:"description"`
	Version     string                       `json:"version"`
	Mappings    map[string]ConceptDefinition `json:"mappings"`
}

// ConceptDefinition lists the accounting elements that share one label
type ConceptDefinition struct {
	Concepts  []string `json:"concepts"`
	Statement string   `json:"statement"` // income, balance or cashflow
	Notes     string   `json:"notes,omitempty"`
}

type conceptMapper struct {
	mappings map[string]ConceptDefinition // standard label -> definition
	byKey    map[string]string            // lowercased "ns:Name" -> standard label
}

var concepts *conceptMapper

func init() {
	var err error
	concepts, err = loadConceptMappings(conceptMappingsJSON)
	if err != nil {
		panic(fmt.Sprintf("Failed to load concept mappings: %v", err))
	}
}

func loadConceptMappings(data []byte) (*conceptMapper, error) {
	var file ConceptMappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse concept_mappings.json: %w", err)
	}

	m := &conceptMapper{
		mappings: file.Mappings,
		byKey:    make(map[string]string),
	}
	for label, def := range file.Mappings {
		for _, c := range def.Concepts {
			k := conceptKey(c)
			if other, dup := m.byKey[k]; dup && other != label {
				return nil, fmt.Errorf("concept %s mapped to both %q and %q", c, other, label)
			}
			m.byKey[k] = label
		}
	}
	return m, nil
}

// conceptKey normalizes both spellings of an element name: the rendered
// reports use "us-gaap_Revenues", instance documents use "us-gaap:Revenues".
func conceptKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if strings.Contains(key, ":") {
		return key
	}
	return strings.Replace(key, "_", ":", 1)
}

// StandardLabel returns the standardized label for an accounting key,
// or "" when the key has no mapping
func StandardLabel(key string) string {
	return concepts.byKey[conceptKey(key)]
}

// ConceptsForLabel returns the accounting elements mapped to a standard label
func ConceptsForLabel(label string) ([]string, error) {
	def, ok := concepts.mappings[label]
	if !ok {
		return nil, fmt.Errorf("unknown standard label %q: %w", label, ErrNotFound)
	}
	out := make([]string, len(def.Concepts))
	copy(out, def.Concepts)
	return out, nil
}

// StandardLabels returns every standard label, sorted
func StandardLabels() []string {
	labels := make([]string, 0, len(concepts.mappings))
	for label := range concepts.mappings {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// StatementOf returns which statement a standard label belongs to
func StatementOf(label string) string {
	return concepts.mappings[label].Statement
}
