package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderList is the ordered provider list. Each YAML entry is a mapping or
// a legacy "name|base_url|api_key" string. Blank strings and strings starting
// with "#" are skipped.
type ProviderList []ProviderConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ProviderList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: providers must be a list", value.Line)
	}

	out := make(ProviderList, 0, len(value.Content))
	for _, node := range value.Content {
		switch node.Kind {
		case yaml.ScalarNode:
			p, ok, err := parseProviderLine(node.Value)
			if err != nil {
				return fmt.Errorf("line %d: %w", node.Line, err)
			}
			if ok {
				out = append(out, p)
			}
		case yaml.MappingNode:
			var p ProviderConfig
			if err := node.Decode(&p); err != nil {
				return err
			}
			out = append(out, p)
		default:
			return fmt.Errorf("line %d: provider entry must be a mapping or \"name|base_url|api_key\" string", node.Line)
		}
	}
	*l = out
	return nil
}

func parseProviderLine(line string) (ProviderConfig, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ProviderConfig{}, false, nil
	}
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return ProviderConfig{}, false, fmt.Errorf("invalid provider entry %q: expected \"name|base_url|api_key\"", redactLine(line))
	}
	return ProviderConfig{
		Name:    strings.TrimSpace(parts[0]),
		BaseURL: strings.TrimRight(strings.TrimSpace(parts[1]), "/"),
		APIKey:  strings.TrimSpace(parts[2]),
	}, true, nil
}

// TokenList is the client token allow-list. Each YAML entry is a mapping or
// a legacy "description|token" string. Blank strings and strings starting
// with "#" are skipped.
type TokenList []TokenConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *TokenList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: tokens must be a list", value.Line)
	}

	out := make(TokenList, 0, len(value.Content))
	for _, node := range value.Content {
		switch node.Kind {
		case yaml.ScalarNode:
			line := strings.TrimSpace(node.Value)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.Split(line, "|")
			if len(parts) != 2 {
				return fmt.Errorf("line %d: invalid token entry: expected \"description|token\"", node.Line)
			}
			out = append(out, TokenConfig{
				Description: strings.TrimSpace(parts[0]),
				Token:       strings.TrimSpace(parts[1]),
			})
		case yaml.MappingNode:
			var t TokenConfig
			if err := node.Decode(&t); err != nil {
				return err
			}
			out = append(out, t)
		default:
			return fmt.Errorf("line %d: token entry must be a mapping or \"description|token\" string", node.Line)
		}
	}
	*l = out
	return nil
}

// redactLine hides the last "|" field of a legacy entry in error messages.
func redactLine(line string) string {
	i := strings.LastIndex(line, "|")
	if i < 0 {
		return line
	}
	return line[:i+1] + "***"
}
