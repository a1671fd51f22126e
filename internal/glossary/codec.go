package glossary

import (
	"encoding/json"
	"fmt"
)

// Encode serialises rules as a JSON array of {"from","to"} objects. A nil or
// empty slice encodes as "[]".
func Encode(rules []Rule) (string, error) {
	if len(rules) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("glossary: encode: %w", err)
	}
	return string(data), nil
}

// Decode parses the output of [Encode]. Rules are returned exactly as
// stored; no normalisation is applied. A JSON null decodes as an empty list.
func Decode(s string) ([]Rule, error) {
	var rules []Rule
	if err := json.Unmarshal([]byte(s), &rules); err != nil {
		return nil, fmt.Errorf("glossary: decode: %w", err)
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}
