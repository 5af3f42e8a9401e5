// Package strategy defines the Strategy contract for signal generation and
// provides a Registry for looking strategies up by name.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"backlab/internal/domain"
)

// Params is a flat mapping of option name to numeric value. Strategies read
// the options they understand and ignore the rest; missing keys fall back to
// the documented defaults.
type Params map[string]float64

// Float returns the value for key, or def when the key is absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the value for key truncated to int, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Strategy is the interface implemented by all signal generators. Strategies
// are stateless: each call receives the full ordered history up to and
// including the current bar and must not read beyond its last element.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Lookback returns the minimum number of bars required before the
	// strategy can emit a non-empty signal under the given parameters. The
	// engine never calls GenerateSignals with a shorter history.
	Lookback(params Params) int

	// GenerateSignals inspects the history and returns at most one action
	// for the current bar. A non-finite intermediate value resolves to the
	// empty signal.
	GenerateSignals(history []domain.PriceBar, params Params) domain.Signal
}

// UnknownStrategyError is returned when a registry lookup fails.
type UnknownStrategyError struct {
	Name      string
	Available []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Registry holds a named collection of strategies. It is populated once at
// construction and immutable afterwards, so it is safe for concurrent reads
// across parallel backtest runs.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a Registry from an explicit strategy list, keyed by
// each strategy's Name().
func NewRegistry(strategies ...Strategy) *Registry {
	m := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &Registry{strategies: m}
}

// Get retrieves a strategy by name. It returns an *UnknownStrategyError
// listing the available names when no strategy matches.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, &UnknownStrategyError{Name: name, Available: r.List()}
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
