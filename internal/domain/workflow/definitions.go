package workflow

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definitions is the on-disk form of a set of transition tables
type Definitions struct {
	DocumentTypes []TableDefinition `yaml:"document_types"`
}

// TableDefinition describes one document type's table
type TableDefinition struct {
	Name        string                 `yaml:"name"`
	Initial     string                 `yaml:"initial"`
	States      []string               `yaml:"states"`
	Terminal    []string               `yaml:"terminal"`
	Transitions []TransitionDefinition `yaml:"transitions"`
}

// TransitionDefinition describes one rule
type TransitionDefinition struct {
	From  string   `yaml:"from"`
	To    string   `yaml:"to"`
	Roles []string `yaml:"roles"`
	Guard string   `yaml:"guard,omitempty"`
}

// LoadDefinitions parses YAML table definitions and builds them through the same
// validation as tables declared in code
func LoadDefinitions(r io.Reader) ([]*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var defs Definitions
	if err := dec.Decode(&defs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty definitions", ErrInvalidTable)
		}
		return nil, fmt.Errorf("%w: failed to parse definitions: %w", ErrInvalidTable, err)
	}

	if len(defs.DocumentTypes) == 0 {
		return nil, fmt.Errorf("%w: no document types defined", ErrInvalidTable)
	}

	tables := make([]*Table, 0, len(defs.DocumentTypes))
	var errs []error
	for _, def := range defs.DocumentTypes {
		table, err := def.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tables = append(tables, table)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return tables, nil
}

// LoadDefinitionsFile reads table definitions from a YAML file
func LoadDefinitionsFile(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open definitions file: %w", err)
	}
	defer f.Close()

	return LoadDefinitions(f)
}

// Build converts the definition into a validated table
func (d TableDefinition) Build() (*Table, error) {
	b := NewBuilder(DocumentType(d.Name)).
		States(toStates(d.States)...).
		Initial(State(d.Initial)).
		Terminal(toStates(d.Terminal)...)

	for _, t := range d.Transitions {
		roles := make([]Role, 0, len(t.Roles))
		for _, r := range t.Roles {
			roles = append(roles, Role(r))
		}
		b.Configure(State(t.From)).PermitIf(State(t.To), t.Guard, roles...)
	}

	return b.Build()
}

// DefinitionOf renders a table back into its definition form
func DefinitionOf(t *Table) TableDefinition {
	def := TableDefinition{
		Name:    string(t.docType),
		Initial: string(t.initial),
	}
	for _, s := range t.States() {
		def.States = append(def.States, string(s))
	}
	for _, s := range t.TerminalStates() {
		def.Terminal = append(def.Terminal, string(s))
	}
	for _, from := range t.States() {
		for _, rule := range t.outgoing[from] {
			td := TransitionDefinition{From: string(rule.From), To: string(rule.To), Guard: rule.Guard}
			for _, r := range rule.Roles {
				td.Roles = append(td.Roles, string(r))
			}
			def.Transitions = append(def.Transitions, td)
		}
	}
	return def
}

func toStates(names []string) []State {
	states := make([]State, 0, len(names))
	for _, n := range names {
		states = append(states, State(n))
	}
	return states
}
