package workflow

import (
	"fmt"
	"sort"
)

// Rule is a single legal edge in a transition table
type Rule struct {
	From  State
	To    State
	Roles []Role
	// Guard names a caller-supplied business predicate; empty means unguarded
	Guard string
}

// AllowsRole returns true if the role may trigger this rule
func (r Rule) AllowsRole(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// HasGuard returns true if the rule names a business guard
func (r Rule) HasGuard() bool {
	return r.Guard != ""
}

type edge struct {
	from State
	to   State
}

// Table is the immutable transition table for one document type.
// It is safe for concurrent reads once built.
type Table struct {
	docType  DocumentType
	initial  State
	states   map[State]bool
	terminal map[State]bool
	rules    map[edge][]Rule
	outgoing map[State][]Rule
}

// DocumentType returns the document type this table governs
func (t *Table) DocumentType() DocumentType {
	return t.docType
}

// InitialState returns the state new documents start in
func (t *Table) InitialState() State {
	return t.initial
}

// IsTerminal returns true if the state has no outgoing transitions
func (t *Table) IsTerminal(state State) bool {
	return t.terminal[state]
}

// HasState returns true if the state is declared in this table
func (t *Table) HasState(state State) bool {
	return t.states[state]
}

// States returns all declared states in sorted order
func (t *Table) States() []State {
	states := make([]State, 0, len(t.states))
	for s := range t.states {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

// TerminalStates returns the terminal states in sorted order
func (t *Table) TerminalStates() []State {
	states := make([]State, 0, len(t.terminal))
	for s := range t.terminal {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

// Lookup returns the candidate rules for a (from, to) pair.
// The returned slice is a copy; callers may not mutate the table through it.
func (t *Table) Lookup(from, to State) []Rule {
	rules := t.rules[edge{from: from, to: to}]
	if len(rules) == 0 {
		return nil
	}
	return append([]Rule(nil), rules...)
}

// Outgoing returns every rule leaving the given state
func (t *Table) Outgoing(from State) []Rule {
	rules := t.outgoing[from]
	if len(rules) == 0 {
		return nil
	}
	return append([]Rule(nil), rules...)
}

// PermittedTargets returns the target states a role may request from a state,
// ignoring business guards
func (t *Table) PermittedTargets(from State, role Role) []State {
	seen := make(map[State]bool)
	var targets []State
	for _, rule := range t.outgoing[from] {
		if rule.AllowsRole(role) && !seen[rule.To] {
			seen[rule.To] = true
			targets = append(targets, rule.To)
		}
	}
	return targets
}

// NextRoles returns the roles that may act on a document sitting in the given state
func (t *Table) NextRoles(from State) []Role {
	seen := make(map[Role]bool)
	var roles []Role
	for _, rule := range t.outgoing[from] {
		for _, role := range rule.Roles {
			if !seen[role] {
				seen[role] = true
				roles = append(roles, role)
			}
		}
	}
	return roles
}

// Registry maps document types to their transition tables.
// It is populated once at startup and read-only afterwards.
type Registry struct {
	tables map[DocumentType]*Table
}

// NewRegistry creates a registry from built tables, rejecting duplicate document types
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{tables: make(map[DocumentType]*Table, len(tables))}
	for _, t := range tables {
		if t == nil {
			return nil, fmt.Errorf("%w: nil table", ErrInvalidTable)
		}
		if _, exists := r.tables[t.docType]; exists {
			return nil, fmt.Errorf("%w: document type %s registered twice", ErrInvalidTable, t.docType)
		}
		r.tables[t.docType] = t
	}
	return r, nil
}

// Table returns the table for a document type
func (r *Registry) Table(docType DocumentType) (*Table, bool) {
	t, ok := r.tables[docType]
	return t, ok
}

// Lookup returns candidate rules for (documentType, from, to)
func (r *Registry) Lookup(docType DocumentType, from, to State) []Rule {
	t, ok := r.tables[docType]
	if !ok {
		return nil
	}
	return t.Lookup(from, to)
}

// InitialState returns the initial state for a document type
func (r *Registry) InitialState(docType DocumentType) (State, error) {
	t, ok := r.tables[docType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocumentType, docType)
	}
	return t.initial, nil
}

// IsTerminal returns true if the state is terminal for the document type
func (r *Registry) IsTerminal(docType DocumentType, state State) bool {
	t, ok := r.tables[docType]
	if !ok {
		return false
	}
	return t.IsTerminal(state)
}

// DocumentTypes returns the registered document types in sorted order
func (r *Registry) DocumentTypes() []DocumentType {
	types := make([]DocumentType, 0, len(r.tables))
	for dt := range r.tables {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
