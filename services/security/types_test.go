// Copyright (C) 2025 DataClinic
// Tests for rule table types

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRuleFile_UnmarshalAndCompile(t *testing.T) {
	doc := `
classifications:
  - name: test_class
    description: "test"
    priority: 10
    patterns:
      - id: test-rule
        description: "a test rule"
        regex: '(?i)forbidden'
        confidence: high
leak_heuristic:
  keywords:
    - "secret phrase"
  benign_framings:
    - "what is"
`
	var file RuleFile
	require.NoError(t, yaml.Unmarshal([]byte(doc), &file))
	require.NoError(t, file.CompileRegexes())

	require.Len(t, file.RuleClasses, 1)
	assert.Equal(t, "test_class", file.RuleClasses[0].Name)
	assert.Equal(t, High, file.RuleClasses[0].Patterns[0].Confidence)
	assert.True(t, file.RuleClasses[0].Patterns[0].compiledPattern.MatchString("FORBIDDEN fruit"))
	assert.Equal(t, []string{"secret phrase"}, file.LeakHeuristic.Keywords)
}

func TestRuleFile_InvalidConfidenceRejected(t *testing.T) {
	doc := `
classifications:
  - name: c
    priority: 1
    patterns:
      - id: r
        regex: 'x'
        confidence: extreme
`
	var file RuleFile
	err := yaml.Unmarshal([]byte(doc), &file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid value for Confidence")
}

func TestRuleFile_InvalidRegexRejected(t *testing.T) {
	file := RuleFile{
		RuleClasses: []RuleClass{{
			Name:     "c",
			Patterns: []Rule{{Id: "bad", Regex: "([unclosed"}},
		}},
	}
	assert.Error(t, file.CompileRegexes())
}

func TestRuleFile_SortByPriority(t *testing.T) {
	file := RuleFile{
		RuleClasses: []RuleClass{
			{Name: "low", Priority: 10},
			{Name: "high", Priority: 50},
			{Name: "mid", Priority: 30},
		},
	}
	file.SortByPriority()

	assert.Equal(t, "high", file.RuleClasses[0].Name)
	assert.Equal(t, "mid", file.RuleClasses[1].Name)
	assert.Equal(t, "low", file.RuleClasses[2].Name)
}

func TestEmbeddedRuleTable_Valid(t *testing.T) {
	engine, err := NewRuleEngine()
	require.NoError(t, err)
	require.NotEmpty(t, engine.classes)

	// Priorities must be strictly descending after sorting so evaluation
	// order is unambiguous.
	for i := 1; i < len(engine.classes); i++ {
		assert.Greater(t, engine.classes[i-1].Priority, engine.classes[i].Priority)
	}

	for _, class := range engine.classes {
		assert.NotEmpty(t, class.Name)
		assert.NotEmpty(t, class.Patterns, "class %s has no patterns", class.Name)
		for _, rule := range class.Patterns {
			assert.NotEmpty(t, rule.Id, "rule in class %s missing id", class.Name)
			assert.NotNil(t, rule.compiledPattern, "rule %s not compiled", rule.Id)
		}
	}

	assert.NotEmpty(t, engine.leak.Keywords)
	assert.NotEmpty(t, engine.leak.BenignFramings)
}
