package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Roster is the read-only lookup table of personas plus the static
// specialty -> fallback-agent table. Built once at startup; concurrent
// reads need no locking.
type Roster struct {
	personas  map[string]Persona
	order     []string
	fallbacks map[string][]string
	overseer  string
}

// NewRoster builds a roster. The first persona is the overseer.
func NewRoster(personas []Persona, fallbacks map[string][]string) (*Roster, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("roster requires at least one persona")
	}
	r := &Roster{
		personas:  make(map[string]Persona, len(personas)),
		order:     make([]string, 0, len(personas)),
		fallbacks: fallbacks,
		overseer:  personas[0].Name,
	}
	for _, p := range personas {
		if p.Name == "" {
			return nil, fmt.Errorf("persona with empty name")
		}
		if _, dup := r.personas[p.Name]; dup {
			return nil, fmt.Errorf("duplicate persona: %s", p.Name)
		}
		r.personas[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	if r.fallbacks == nil {
		r.fallbacks = map[string][]string{}
	}
	return r, nil
}

// DefaultRoster returns the built-in 23-persona roster.
func DefaultRoster() *Roster {
	r, err := NewRoster(DefaultPersonas(), DefaultFallbacks())
	if err != nil {
		// Built-in data; cannot fail.
		panic(err)
	}
	return r
}

// rosterFile is the YAML shape for an external roster.
type rosterFile struct {
	Personas  []Persona           `yaml:"personas"`
	Fallbacks map[string][]string `yaml:"fallbacks"`
}

// LoadRoster reads a roster from a YAML file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}
	return NewRoster(rf.Personas, rf.Fallbacks)
}

// Lookup returns the persona for name.
func (r *Roster) Lookup(name string) (Persona, bool) {
	p, ok := r.personas[name]
	return p, ok
}

// Has reports whether name resolves to a persona.
func (r *Roster) Has(name string) bool {
	_, ok := r.personas[name]
	return ok
}

// Known returns the set of agent names, for plan validation.
func (r *Roster) Known() map[string]bool {
	known := make(map[string]bool, len(r.personas))
	for name := range r.personas {
		known[name] = true
	}
	return known
}

// Names returns agent names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Overseer returns the name of the delegation/aggregation persona.
func (r *Roster) Overseer() string {
	return r.overseer
}

// Len returns the roster size.
func (r *Roster) Len() int {
	return len(r.personas)
}

// FallbackFor returns the ordered alternate agents for a specialty,
// excluding the given primary agent. Nil when the specialty is unknown.
func (r *Roster) FallbackFor(specialty, primary string) []string {
	list, ok := r.fallbacks[specialty]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, name := range list {
		if name != primary && r.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
