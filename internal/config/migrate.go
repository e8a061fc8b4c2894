package config

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/formrelay/formrelay/internal/rules"
)

// Keywords used by version 1 documents.
const (
	legacyPassthrough = "__PASSTHROUGH"
	legacyUnset       = "__UNSET"
)

var legacyKeywords = map[string]string{
	legacyPassthrough: rules.KeywordPassthrough,
	legacyUnset:       rules.KeywordUnset,
}

// MigrationResult describes what Migrate changed.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Rewritten   int
}

// Changed reports whether the document was rewritten.
func (r MigrationResult) Changed() bool {
	return r.FromVersion != r.ToVersion
}

// Migrate upgrades a config document to CurrentVersion, rewriting legacy rule
// keywords in route cookies and headers. Document order and comments are kept.
// A current document is returned unchanged.
func Migrate(data []byte) ([]byte, MigrationResult, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, MigrationResult{}, fmt.Errorf("parse config: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, MigrationResult{}, errors.New("config must be a mapping")
	}
	root := doc.Content[0]

	version := 1
	versionNode := mappingValue(root, "configVersion")
	if versionNode != nil {
		v, err := strconv.Atoi(versionNode.Value)
		if err != nil {
			return nil, MigrationResult{}, fmt.Errorf("configVersion %q is not a number", versionNode.Value)
		}
		version = v
	}
	result := MigrationResult{FromVersion: version, ToVersion: version}
	if version >= CurrentVersion {
		return data, result, nil
	}

	if routes := mappingValue(root, "routes"); routes != nil && routes.Kind == yaml.SequenceNode {
		for _, route := range routes.Content {
			if route.Kind != yaml.MappingNode {
				continue
			}
			for _, key := range []string{"cookies", "headers"} {
				set := mappingValue(route, key)
				if set == nil || set.Kind != yaml.MappingNode {
					continue
				}
				for i := 1; i < len(set.Content); i += 2 {
					result.Rewritten += rewriteKeywords(set.Content[i])
				}
			}
		}
	}

	if versionNode == nil {
		root.Content = append([]*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "configVersion"},
			{Kind: yaml.ScalarNode, Tag: "!!int"},
		}, root.Content...)
		versionNode = root.Content[1]
	}
	versionNode.Value = strconv.Itoa(CurrentVersion)
	versionNode.Tag = "!!int"
	result.ToVersion = CurrentVersion

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, MigrationResult{}, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, MigrationResult{}, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), result, nil
}

// rewriteKeywords replaces legacy keywords in a rule value, descending into
// conditional branches. It returns the number of replaced scalars.
func rewriteKeywords(node *yaml.Node) int {
	switch node.Kind {
	case yaml.ScalarNode:
		if replacement, ok := legacyKeywords[node.Value]; ok {
			node.Value = replacement
			node.Style = yaml.DoubleQuotedStyle
			node.Tag = "!!str"
			return 1
		}
	case yaml.MappingNode:
		n := 0
		for i := 1; i < len(node.Content); i += 2 {
			switch node.Content[i-1].Value {
			case "if", "then", "else":
				n += rewriteKeywords(node.Content[i])
			}
		}
		return n
	}
	return 0
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
