package workflow

import (
	"errors"
	"fmt"
)

// TableBuilder builds a validated transition table for one document type
type TableBuilder interface {
	// States declares the state set of the document type
	States(states ...State) TableBuilder

	// Initial sets the state new documents start in
	Initial(state State) TableBuilder

	// Terminal marks states that accept no further transitions
	Terminal(states ...State) TableBuilder

	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build validates the configuration and returns an immutable table
	Build() (*Table, error)
}

// StateConfiguration configures transitions leaving a specific state
type StateConfiguration interface {
	// Permit allows the roles to move the document to the target state
	Permit(toState State, roles ...Role) StateConfiguration

	// PermitIf allows the roles to move the document to the target state when the named guard holds
	PermitIf(toState State, guard string, roles ...Role) StateConfiguration
}

type stateConfig struct {
	builder   *tableBuilder
	fromState State
}

type tableBuilder struct {
	docType  DocumentType
	initial  State
	states   map[State]bool
	order    []State
	terminal map[State]bool
	rules    []Rule
	errs     []error
}

// NewBuilder creates a new table builder for a document type
func NewBuilder(docType DocumentType) TableBuilder {
	return &tableBuilder{
		docType:  docType,
		states:   make(map[State]bool),
		terminal: make(map[State]bool),
	}
}

// States declares the state set of the document type
func (b *tableBuilder) States(states ...State) TableBuilder {
	for _, s := range states {
		if s == "" {
			b.errs = append(b.errs, fmt.Errorf("%w: empty state name", ErrInvalidTable))
			continue
		}
		if !b.states[s] {
			b.states[s] = true
			b.order = append(b.order, s)
		}
	}
	return b
}

// Initial sets the state new documents start in
func (b *tableBuilder) Initial(state State) TableBuilder {
	b.initial = state
	return b
}

// Terminal marks states that accept no further transitions
func (b *tableBuilder) Terminal(states ...State) TableBuilder {
	for _, s := range states {
		b.terminal[s] = true
	}
	return b
}

// Configure returns a state configuration for the given state
func (b *tableBuilder) Configure(state State) StateConfiguration {
	return &stateConfig{
		builder:   b,
		fromState: state,
	}
}

// Permit allows the roles to move the document to the target state
func (c *stateConfig) Permit(toState State, roles ...Role) StateConfiguration {
	return c.PermitIf(toState, "", roles...)
}

// PermitIf allows the roles to move the document to the target state when the named guard holds
func (c *stateConfig) PermitIf(toState State, guard string, roles ...Role) StateConfiguration {
	if len(roles) == 0 {
		c.builder.errs = append(c.builder.errs,
			fmt.Errorf("%w: %s -> %s has no roles", ErrInvalidTable, c.fromState, toState))
		return c
	}

	c.builder.rules = append(c.builder.rules, Rule{
		From:  c.fromState,
		To:    toState,
		Roles: append([]Role(nil), roles...),
		Guard: guard,
	})

	return c
}

type ruleKey struct {
	from  State
	to    State
	role  Role
	guard string
}

// Build validates the configuration and returns an immutable table
func (b *tableBuilder) Build() (*Table, error) {
	errs := append([]error(nil), b.errs...)

	if b.docType == "" {
		errs = append(errs, fmt.Errorf("%w: empty document type", ErrInvalidTable))
	}
	if len(b.states) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s declares no states", ErrInvalidTable, b.docType))
	}
	if b.initial == "" {
		errs = append(errs, fmt.Errorf("%w: %s has no initial state", ErrInvalidTable, b.docType))
	} else if !b.states[b.initial] {
		errs = append(errs, fmt.Errorf("%w: %s initial state %s is not declared", ErrInvalidTable, b.docType, b.initial))
	}
	if len(b.terminal) == 0 {
		errs = append(errs, fmt.Errorf("%w: %s has no terminal states", ErrInvalidTable, b.docType))
	}
	for s := range b.terminal {
		if !b.states[s] {
			errs = append(errs, fmt.Errorf("%w: %s terminal state %s is not declared", ErrInvalidTable, b.docType, s))
		}
	}

	seen := make(map[ruleKey]bool)
	guardByRole := make(map[ruleKey]string)
	rules := make(map[edge][]Rule)
	outgoing := make(map[State][]Rule)

	for _, rule := range b.rules {
		if !b.states[rule.From] {
			errs = append(errs, fmt.Errorf("%w: %s rule from undeclared state %s", ErrInvalidTable, b.docType, rule.From))
			continue
		}
		if !b.states[rule.To] {
			errs = append(errs, fmt.Errorf("%w: %s rule to undeclared state %s", ErrInvalidTable, b.docType, rule.To))
			continue
		}
		if b.terminal[rule.From] {
			errs = append(errs, fmt.Errorf("%w: %s terminal state %s has outgoing rule to %s", ErrInvalidTable, b.docType, rule.From, rule.To))
			continue
		}

		for _, role := range rule.Roles {
			key := ruleKey{from: rule.From, to: rule.To, role: role, guard: rule.Guard}
			if seen[key] {
				errs = append(errs, fmt.Errorf("%w: %s %s -> %s role=%s guard=%q",
					ErrDuplicateTransitionRule, b.docType, rule.From, rule.To, role, rule.Guard))
				continue
			}
			seen[key] = true

			pairKey := ruleKey{from: rule.From, to: rule.To, role: role}
			if other, exists := guardByRole[pairKey]; exists && other != rule.Guard {
				errs = append(errs, fmt.Errorf("%w: %w: %s %s -> %s role=%s matches guards %q and %q",
					ErrInvalidTable, ErrAmbiguousTransition, b.docType, rule.From, rule.To, role, other, rule.Guard))
				continue
			}
			guardByRole[pairKey] = rule.Guard
		}

		e := edge{from: rule.From, to: rule.To}
		rules[e] = append(rules[e], rule)
		outgoing[rule.From] = append(outgoing[rule.From], rule)
	}

	for _, s := range b.order {
		if b.terminal[s] {
			continue
		}
		if len(outgoing[s]) == 0 {
			if s == b.initial {
				errs = append(errs, fmt.Errorf("%w: %s initial state %s has no outgoing rule", ErrInvalidTable, b.docType, s))
			} else {
				errs = append(errs, fmt.Errorf("%w: %s state %s has no outgoing rule and is not terminal", ErrInvalidTable, b.docType, s))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	states := make(map[State]bool, len(b.states))
	for s := range b.states {
		states[s] = true
	}
	terminal := make(map[State]bool, len(b.terminal))
	for s := range b.terminal {
		terminal[s] = true
	}

	return &Table{
		docType:  b.docType,
		initial:  b.initial,
		states:   states,
		terminal: terminal,
		rules:    rules,
		outgoing: outgoing,
	}, nil
}
