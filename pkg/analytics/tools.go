package analytics

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultTools are the tool identifiers every aggregate carries a counter for
var DefaultTools = []string{
	"meta-tags",
	"opengraph",
	"schema-markup",
	"image-seo",
	"keyword-density",
	"tech-stack",
	"serp-preview",
	"site-crawler",
}

// ToolCatalog is the on-disk form of the known tool list
type ToolCatalog struct {
	Tools []ToolDefinition `yaml:"tools"`
}

// ToolDefinition describes one tool
type ToolDefinition struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// LoadToolCatalog reads a YAML catalog and returns its tool identifiers in file order.
// An empty path returns DefaultTools.
func LoadToolCatalog(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultTools...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}
	return ParseToolCatalog(data)
}

// ParseToolCatalog parses YAML catalog bytes
func ParseToolCatalog(data []byte) ([]string, error) {
	var catalog ToolCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Tools))
	tools := make([]string, 0, len(catalog.Tools))
	for i, def := range catalog.Tools {
		if def.ID == "" {
			return nil, fmt.Errorf("tool catalog entry %d has no id", i)
		}
		if seen[def.ID] {
			continue
		}
		seen[def.ID] = true
		tools = append(tools, def.ID)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("tool catalog is empty")
	}
	return tools, nil
}

// sortedTools returns the keys of usage in a stable order
func sortedTools(usage map[string]int64) []string {
	keys := make([]string, 0, len(usage))
	for k := range usage {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
