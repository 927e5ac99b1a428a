package pattern

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk layout of a rule table.
//
//	rules:
//	  - name: Netflix
//	    pattern: netflix
//	    category: Entertainment
//	    confidence: 0.95
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads an ordered rule table from a YAML file.
func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseRules(f)
}

// ParseRules decodes a YAML rule table, keeping list order as table order.
func ParseRules(r io.Reader) ([]Rule, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	for i := range file.Rules {
		file.Rules[i].Position = i
		file.Rules[i].IsActive = true
		if file.Rules[i].Confidence == 0 {
			file.Rules[i].Confidence = MinRuleConfidence
		}
	}

	if err := ValidateRules(file.Rules, nil); err != nil {
		return nil, err
	}
	return file.Rules, nil
}
