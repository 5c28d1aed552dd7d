package agent

// Persona is the static identity of a named agent: a string key that maps to
// an LLM-backed completion capability plus role and specialty metadata.
// Personas are configuration, loaded once at startup and never mutated.
type Persona struct {
	Name         string   `json:"name" yaml:"name"`
	Role         string   `json:"role" yaml:"role"`
	Specialty    string   `json:"specialty" yaml:"specialty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// SystemPrompt renders the persona as a system prompt for its backing model.
func (p Persona) SystemPrompt() string {
	prompt := "You are " + p.Name + ", " + p.Role + "."
	if p.Specialty != "" {
		prompt += " Your specialty is " + p.Specialty + "."
	}
	return prompt
}

// DefaultPersonas is the built-in roster. The first entry is the overseer
// used for delegation and aggregation prompts.
func DefaultPersonas() []Persona {
	return []Persona{
		{Name: "atlas", Role: "the overseer who decomposes requests into tasks and assigns them", Specialty: "planning", Capabilities: []string{"delegation", "aggregation"}},
		{Name: "felix", Role: "a senior backend engineer", Specialty: "backend", Capabilities: []string{"api", "services"}},
		{Name: "nova", Role: "a backend engineer focused on distributed systems", Specialty: "backend", Capabilities: []string{"concurrency", "messaging"}},
		{Name: "rhea", Role: "an API designer", Specialty: "api", Capabilities: []string{"rest", "grpc"}},
		{Name: "vega", Role: "a frontend engineer", Specialty: "frontend", Capabilities: []string{"ui", "state"}},
		{Name: "echo", Role: "a frontend engineer focused on accessibility", Specialty: "frontend", Capabilities: []string{"a11y", "css"}},
		{Name: "iris", Role: "a product designer", Specialty: "design", Capabilities: []string{"wireframes", "flows"}},
		{Name: "sol", Role: "a test engineer", Specialty: "testing", Capabilities: []string{"unit", "integration"}},
		{Name: "tess", Role: "a QA engineer", Specialty: "testing", Capabilities: []string{"regression", "exploratory"}},
		{Name: "orion", Role: "a devops engineer", Specialty: "devops", Capabilities: []string{"ci", "deploy"}},
		{Name: "otis", Role: "an infrastructure engineer", Specialty: "infra", Capabilities: []string{"provisioning", "networking"}},
		{Name: "juno", Role: "a security engineer", Specialty: "security", Capabilities: []string{"audit", "hardening"}},
		{Name: "remy", Role: "a database engineer", Specialty: "database", Capabilities: []string{"schema", "tuning"}},
		{Name: "kira", Role: "a data engineer", Specialty: "data", Capabilities: []string{"pipelines", "etl"}},
		{Name: "ziggy", Role: "a machine learning engineer", Specialty: "ml", Capabilities: []string{"training", "evaluation"}},
		{Name: "luna", Role: "a researcher", Specialty: "research", Capabilities: []string{"survey", "analysis"}},
		{Name: "milo", Role: "a technical writer", Specialty: "docs", Capabilities: []string{"reference", "guides"}},
		{Name: "wren", Role: "a code reviewer", Specialty: "review", Capabilities: []string{"readability", "correctness"}},
		{Name: "nico", Role: "a mobile engineer", Specialty: "mobile", Capabilities: []string{"ios", "android"}},
		{Name: "pax", Role: "an integration engineer", Specialty: "integration", Capabilities: []string{"webhooks", "sdks"}},
		{Name: "saga", Role: "a software architect", Specialty: "architecture", Capabilities: []string{"boundaries", "tradeoffs"}},
		{Name: "ivo", Role: "a performance engineer", Specialty: "performance", Capabilities: []string{"profiling", "benchmarks"}},
		{Name: "blu", Role: "a support engineer", Specialty: "support", Capabilities: []string{"triage", "diagnosis"}},
	}
}

// DefaultFallbacks is the built-in specialty -> ordered-agent-list table used
// when every retry against the primary agent is exhausted.
func DefaultFallbacks() map[string][]string {
	return map[string][]string{
		"backend":  {"felix", "nova", "rhea"},
		"frontend": {"vega", "echo", "iris"},
		"testing":  {"sol", "tess", "wren"},
		"devops":   {"orion", "otis"},
		"security": {"juno", "wren"},
		"database": {"remy", "kira"},
		"data":     {"kira", "ziggy"},
		"docs":     {"milo", "luna"},
		"research": {"luna", "saga"},
	}
}
