// Package vocab holds the canonical values of categorical filters and
// corrects free-text answers towards them.
package vocab

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// DefaultThreshold is the minimum score at which an answer is rewritten.
const DefaultThreshold = 20

// Match is the best canonical value for an input and its score.
type Match struct {
	Value string
	Score int
}

// Corrector maps approximate user input to known values, per filter field.
type Corrector struct {
	known     map[string][]string
	threshold int
}

// New returns a Corrector over the embedded vocabulary.
func New(threshold int) (*Corrector, error) {
	known, err := parseVocabulary(defaultVocabularyYAML)
	if err != nil {
		return nil, err
	}
	return NewWithValues(known, threshold), nil
}

// NewWithValues returns a Corrector over an explicit vocabulary.
func NewWithValues(known map[string][]string, threshold int) *Corrector {
	return &Corrector{known: known, threshold: threshold}
}

func parseVocabulary(data []byte) (map[string][]string, error) {
	known := map[string][]string{}
	if err := yaml.Unmarshal(data, &known); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	return known, nil
}

// Known returns the canonical values of field, nil when it has no vocabulary.
func (c *Corrector) Known(field string) []string {
	return c.known[field]
}

// Threshold returns the acceptance score.
func (c *Corrector) Threshold() int {
	return c.threshold
}

// Best scores input against every known value of field and returns the
// highest-scoring one; the first value wins ties. ok is false when field
// has no vocabulary or input is empty.
func (c *Corrector) Best(field, input string) (Match, bool) {
	choices := c.known[field]
	if len(choices) == 0 || input == "" {
		return Match{}, false
	}
	best := Match{Score: -1}
	for _, choice := range choices {
		if score := WRatio(input, choice); score > best.Score {
			best = Match{Value: choice, Score: score}
		}
	}
	return best, true
}

// Correct returns the canonical value closest to input when its score
// reaches the threshold, and input unchanged otherwise.
func (c *Corrector) Correct(field, input string) string {
	m, ok := c.Best(field, input)
	if !ok || m.Score < c.threshold {
		return input
	}
	return m.Value
}
