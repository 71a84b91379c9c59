// Package chain defines multi-step agent workflows: an ordered list of
// agent steps executed as one logical run, with stop-condition
// evaluation after every step.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
)

var (
	ErrNameRequired      = errors.New("chain name is required")
	ErrNoSteps           = errors.New("chain must have at least one step")
	ErrStepMissingAgent  = errors.New("step agent is required")
	ErrInvalidInputMode  = errors.New("invalid step input mode")
	ErrInvalidPrecedence = errors.New("invalid stop precedence")
	ErrInvalidMergeRule  = errors.New("invalid merge rule")

	// ErrChainFailed wraps the halting step's error with chain context.
	ErrChainFailed = errors.New("chain execution failed")
)

// InputMode selects how a step's input document is assembled.
type InputMode string

const (
	// InputNone runs the step with an empty input.
	InputNone InputMode = "none"
	// InputInitial feeds the chain's initial input document.
	InputInitial InputMode = "initial"
	// InputLastOutput feeds the previous step's output document.
	InputLastOutput InputMode = "last_output"
	// InputMerged feeds the initial input shallow-merged with every
	// prior output, later steps winning on key overlap.
	InputMerged InputMode = "merged"
)

// StopPrecedence decides whether chain-level or step-level stop
// conditions are evaluated first. This is deliberately configuration,
// not a hardcoded rule.
type StopPrecedence string

const (
	PrecedenceStepFirst  StopPrecedence = "step-first"
	PrecedenceChainFirst StopPrecedence = "chain-first"
)

// MergeRule selects how the chain's final state document is assembled
// after all steps complete.
type MergeRule string

const (
	// MergeLast takes the last step's output as the final state.
	MergeLast MergeRule = "last"
	// MergeAll shallow-merges every step output in order.
	MergeAll MergeRule = "merge"
)

// Step is one unit of work in a chain: which agent to run and how to
// map prior outputs into its input.
type Step struct {
	Name   string    `json:"name" yaml:"name"`
	Agent  string    `json:"agent" yaml:"agent"`
	Input  InputMode `json:"input,omitempty" yaml:"input,omitempty"`
	// StopOn declares step-level stop conditions evaluated against the
	// step's output, in addition to the agent's own declared ones.
	StopOn []string `json:"stop_on,omitempty" yaml:"stop_on,omitempty"`
}

// StopPolicy is the chain-level stop configuration.
type StopPolicy struct {
	Precedence StopPrecedence `json:"precedence,omitempty" yaml:"precedence,omitempty"`
	// Conditions are evaluated against every step's output.
	Conditions []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Chain is a named, ordered sequence of agent steps. Chains are loaded
// from YAML files or provided as built-in presets.
type Chain struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Builtin     bool       `json:"builtin" yaml:"-"`
	Steps       []Step     `json:"steps" yaml:"steps"`
	Stop        StopPolicy `json:"stop,omitempty" yaml:"stop,omitempty"`
	Merge       MergeRule  `json:"merge,omitempty" yaml:"merge,omitempty"`
}

// Validate checks the chain for structural correctness.
func (c *Chain) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if len(c.Steps) == 0 {
		return ErrNoSteps
	}
	for i, s := range c.Steps {
		if s.Agent == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingAgent)
		}
		switch s.Input {
		case "", InputNone, InputInitial, InputLastOutput, InputMerged:
		default:
			return fmt.Errorf("step %d: %q: %w", i, s.Input, ErrInvalidInputMode)
		}
	}
	switch c.Stop.Precedence {
	case "", PrecedenceStepFirst, PrecedenceChainFirst:
	default:
		return fmt.Errorf("%q: %w", c.Stop.Precedence, ErrInvalidPrecedence)
	}
	switch c.Merge {
	case "", MergeLast, MergeAll:
	default:
		return fmt.Errorf("%q: %w", c.Merge, ErrInvalidMergeRule)
	}
	return nil
}

// Precedence returns the configured stop precedence, defaulting to
// step-first.
func (c *Chain) Precedence() StopPrecedence {
	if c.Stop.Precedence == "" {
		return PrecedenceStepFirst
	}
	return c.Stop.Precedence
}

// MergeRuleOrDefault returns the configured merge rule, defaulting to
// taking the last step's output.
func (c *Chain) MergeRuleOrDefault() MergeRule {
	if c.Merge == "" {
		return MergeLast
	}
	return c.Merge
}

// MatchCondition evaluates one declared stop condition against an
// output document. A condition is either "field" (stop when the field
// is present and truthy) or "field=value" (stop when the field's
// string form equals the value).
func MatchCondition(cond string, out document.Document) bool {
	if out == nil {
		return false
	}
	field, want, hasValue := strings.Cut(cond, "=")
	field = strings.TrimSpace(field)
	v, ok := out[field]
	if !ok {
		return false
	}
	if hasValue {
		return fmt.Sprint(v) == strings.TrimSpace(want)
	}
	switch tv := v.(type) {
	case bool:
		return tv
	case string:
		return tv != ""
	case float64:
		return tv != 0
	case nil:
		return false
	default:
		return true
	}
}
