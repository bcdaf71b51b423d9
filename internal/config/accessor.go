package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// tree renders cfg as the JSON object the path helpers walk. Keys are the
// json tags, so paths read like the config file: "http.port", "rapidapi.host".
func tree(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByPath returns a section or a single value by dot-notation path.
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := tree(cfg)
	if err != nil {
		return nil, err
	}
	var current any = m
	for _, key := range strings.Split(path, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q is a value, not a section", path, key)
		}
		if current, ok = section[key]; !ok {
			return nil, fmt.Errorf("unknown config key: %s", path)
		}
	}
	return current, nil
}

// SetByPath sets one existing value, e.g. "http.port" to "9090". The raw
// string is converted to the type the key already holds.
func SetByPath(cfg *Config, path, raw string) error {
	m, err := tree(cfg)
	if err != nil {
		return err
	}
	keys := strings.Split(path, ".")
	section := m
	for _, key := range keys[:len(keys)-1] {
		next, ok := section[key].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config section: %s", key)
		}
		section = next
	}

	leaf := keys[len(keys)-1]
	current, ok := section[leaf]
	if !ok {
		return fmt.Errorf("unknown config key: %s", path)
	}
	if _, isSection := current.(map[string]any); isSection {
		return fmt.Errorf("%s is a section; set one of its keys", path)
	}
	value, err := convert(current, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	section[leaf] = value

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

// convert parses raw as the JSON type of current. Numbers in Config are all
// ints; the only list (telegram.allowFrom) is written comma separated and is
// null when empty.
func convert(current any, raw string) (any, error) {
	switch current.(type) {
	case bool:
		return strconv.ParseBool(raw)
	case float64:
		return strconv.Atoi(raw)
	case []any, nil:
		var list FlexStringList
		if err := list.UnmarshalText([]byte(raw)); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return raw, nil
	}
}

// Sanitize returns a copy of the config with secrets masked.
func Sanitize(cfg *Config) *Config {
	masked := *cfg
	masked.Telegram.AllowFrom = append(FlexStringList(nil), cfg.Telegram.AllowFrom...)
	if masked.Telegram.Token != "" {
		masked.Telegram.Token = maskString(masked.Telegram.Token)
	}
	if masked.RapidAPI.Key != "" {
		masked.RapidAPI.Key = maskString(masked.RapidAPI.Key)
	}
	return &masked
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// ListPaths returns every settable "section.key" path with its value.
func ListPaths(cfg *Config) map[string]any {
	m, err := tree(cfg)
	if err != nil {
		return nil
	}
	paths := make(map[string]any)
	for name, section := range m {
		values, ok := section.(map[string]any)
		if !ok {
			continue
		}
		for key, v := range values {
			paths[name+"."+key] = v
		}
	}
	return paths
}
