package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/types"
)

// taskRecord is the JSON shape requested from the overseer. LLMs routinely
// emit numeric ids and dependency lists, so both fields accept either form.
type taskRecord struct {
	TaskID       json.RawMessage   `json:"task_id"`
	Agent        string            `json:"agent"`
	Description  string            `json:"description"`
	Dependencies []json.RawMessage `json:"dependencies"`
}

// planEnvelope is the outer object: {"tasks": [...]}.
type planEnvelope struct {
	Tasks []taskRecord `json:"tasks"`
}

// strategy is one extraction attempt: raw text in, candidate records out.
// Strategies are pure and tried strictly in order; the first one that yields
// at least one candidate wins.
type strategy struct {
	name string
	fn   func(raw string) ([]taskRecord, bool)
}

// Parser turns an overseer's free-text response into a validated task list.
// Plan text is untrusted upstream output, so extraction is a chain of
// layered fallbacks rather than a single parse.
type Parser struct {
	strategies []strategy
	logger     *zap.Logger
}

// NewParser creates a parser with the standard strategy chain.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{logger: logger.With(zap.String("component", "plan_parser"))}
	p.strategies = []strategy{
		{"direct_json", parseDirect},
		{"fenced_json", parseFenced},
		{"embedded_json", parseEmbedded},
		{"stripped_json", parseStripped},
		{"line_heuristic", parseLines},
	}
	return p
}

// Parse extracts tasks from raw text, keeping only tasks that name an agent
// in known and carry an id and a description. An empty result is not an
// error: it signals the request needs no decomposition.
func (p *Parser) Parse(raw string, known map[string]bool) []*types.Task {
	tasks, _ := p.ParseWithStrategy(raw, known)
	return tasks
}

// ParseWithStrategy is Parse plus the name of the strategy that produced the
// candidates, for logging and metrics. The strategy name is empty when no
// strategy extracted anything.
func (p *Parser) ParseWithStrategy(raw string, known map[string]bool) ([]*types.Task, string) {
	for _, s := range p.strategies {
		records, ok := s.fn(raw)
		if !ok || len(records) == 0 {
			continue
		}
		tasks := p.validate(records, known)
		p.logger.Debug("plan extracted",
			zap.String("strategy", s.name),
			zap.Int("candidates", len(records)),
			zap.Int("accepted", len(tasks)),
		)
		return tasks, s.name
	}
	p.logger.Debug("no plan extracted, treating as direct request")
	return nil, ""
}

// validate drops candidates with a missing id, agent, or description, an
// unknown agent, or a duplicate id. Dropping is per-task: the plan continues
// with whatever survives.
func (p *Parser) validate(records []taskRecord, known map[string]bool) []*types.Task {
	tasks := make([]*types.Task, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		id := normalizeID(rec.TaskID)
		agent := strings.TrimSpace(rec.Agent)
		desc := strings.TrimSpace(rec.Description)
		if id == "" || agent == "" || desc == "" {
			p.logger.Warn("dropping malformed task",
				zap.String("task_id", id),
				zap.String("agent", agent),
			)
			continue
		}
		if !known[agent] {
			p.logger.Warn("dropping task for unknown agent",
				zap.String("task_id", id),
				zap.String("agent", agent),
			)
			continue
		}
		if seen[id] {
			p.logger.Warn("dropping task with duplicate id", zap.String("task_id", id))
			continue
		}
		seen[id] = true

		deps := make([]string, 0, len(rec.Dependencies))
		for _, d := range rec.Dependencies {
			if dep := normalizeID(d); dep != "" {
				deps = append(deps, dep)
			}
		}
		tasks = append(tasks, types.NewTask(id, agent, desc, deps))
	}
	return tasks
}

// normalizeID accepts a JSON string or number and returns its string form.
func normalizeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// decodeEnvelope parses candidate JSON into task records. Both the
// {"tasks": [...]} envelope and a bare [...] array are accepted; models
// asked for the envelope still return the naked array often enough.
func decodeEnvelope(candidate string) ([]taskRecord, bool) {
	if strings.HasPrefix(candidate, "[") {
		var records []taskRecord
		if err := json.Unmarshal([]byte(candidate), &records); err != nil {
			return nil, false
		}
		if len(records) == 0 {
			return nil, false
		}
		return records, true
	}
	var env planEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return nil, false
	}
	if len(env.Tasks) == 0 {
		return nil, false
	}
	return env.Tasks, true
}

// parseDirect tries the whole text as the JSON envelope or a bare array.
func parseDirect(raw string) ([]taskRecord, bool) {
	return decodeEnvelope(strings.TrimSpace(raw))
}

// parseFenced extracts the interior of a triple-backtick block, preferring a
// block tagged json, and parses it as the envelope.
func parseFenced(raw string) ([]taskRecord, bool) {
	for _, tag := range []string{"```json", "```"} {
		idx := strings.Index(raw, tag)
		if idx == -1 {
			continue
		}
		start := idx + len(tag)
		// Skip a language tag on the opening line of a bare fence.
		if tag == "```" {
			if nl := strings.Index(raw[start:], "\n"); nl != -1 {
				start += nl + 1
			}
		}
		end := strings.Index(raw[start:], "```")
		if end == -1 {
			continue
		}
		if records, ok := decodeEnvelope(strings.TrimSpace(raw[start : start+end])); ok {
			return records, true
		}
	}
	return nil, false
}

// parseEmbedded scans for a balanced {...} substring containing the token
// "tasks" and parses it. This recovers plans wrapped in prose.
func parseEmbedded(raw string) ([]taskRecord, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		block, ok := balancedBlock(raw[start:])
		if !ok {
			continue
		}
		if !strings.Contains(block, `"tasks"`) {
			continue
		}
		if records, ok := decodeEnvelope(block); ok {
			return records, true
		}
	}
	return nil, false
}

// balancedBlock returns the prefix of s spanning from the opening brace to
// its matching close brace, tracking strings and escapes.
func balancedBlock(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// string contents are opaque
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// parseStripped removes stray fence markers from the whole text and retries
// a direct parse. Catches plans with an unterminated or doubled fence.
func parseStripped(raw string) ([]taskRecord, bool) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return decodeEnvelope(strings.TrimSpace(cleaned))
}

// lineHeaders mark the start of a bullet-list plan section.
var lineHeaders = []string{"AGENTS NEEDED", "TASK BREAKDOWN"}

// parseLines is the last-resort heuristic: a section headed by AGENTS NEEDED
// or TASK BREAKDOWN followed by "- agent: description" bullets. Bullet tasks
// declare no dependencies.
func parseLines(raw string) ([]taskRecord, bool) {
	lines := strings.Split(raw, "\n")
	section := -1
	for i, line := range lines {
		upper := strings.ToUpper(line)
		for _, h := range lineHeaders {
			if strings.Contains(upper, h) {
				section = i
				break
			}
		}
		if section != -1 {
			break
		}
	}
	if section == -1 {
		return nil, false
	}

	var records []taskRecord
	for _, line := range lines[section+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") {
			// section ended
			break
		}
		body := strings.TrimSpace(strings.TrimLeft(trimmed, "-* "))
		agent, desc, ok := strings.Cut(body, ":")
		if !ok {
			continue
		}
		agent = strings.ToLower(strings.TrimSpace(agent))
		desc = strings.TrimSpace(desc)
		if agent == "" || desc == "" {
			continue
		}
		id := fmt.Sprintf("%d", len(records)+1)
		records = append(records, taskRecord{
			TaskID:      json.RawMessage(strconv.Quote(id)),
			Agent:       agent,
			Description: desc,
		})
	}
	return records, len(records) > 0
}
