// Package agent classifies raw user-agent strings into a device type and
// browser name.
package agent

import (
	"fmt"
	"strings"
)

// Strategy selects how user agents are classified.
type Strategy string

const (
	// StrategyParser parses the user agent structurally.
	StrategyParser Strategy = "parser"
	// StrategyCatalog matches the whole string against fixed token lists.
	StrategyCatalog Strategy = "catalog"
)

// Result is the classification of one user agent. Both fields are always set.
type Result struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
}

// Classifier maps a user agent to a Result. Implementations never fail.
type Classifier interface {
	Classify(userAgent string) Result
}

// New returns the classifier for the named strategy.
func New(strategy string) (Classifier, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(strategy))) {
	case StrategyParser, "":
		return NewParser(), nil
	case StrategyCatalog:
		return NewCatalog(), nil
	default:
		return nil, fmt.Errorf("unknown user agent strategy %q", strategy)
	}
}
