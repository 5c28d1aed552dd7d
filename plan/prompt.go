package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/crewflow/agent"
)

// TokenCounter counts tokens for prompt budgeting. Satisfied by the llm
// package's tokenizers.
type TokenCounter interface {
	Count(text string) int
}

// DelegationPrompt builds the overseer prompt that requests a plan in the
// canonical JSON shape. The parser treats whatever comes back as untrusted.
func DelegationPrompt(roster *agent.Roster, request string) string {
	var b strings.Builder
	b.WriteString("You coordinate a team of agents. Decompose the request below into tasks ")
	b.WriteString("and assign each to the best-suited agent.\n\nAgents:\n")
	for _, name := range roster.Names() {
		if name == roster.Overseer() {
			continue
		}
		p, _ := roster.Lookup(name)
		fmt.Fprintf(&b, "- %s: %s (specialty: %s)\n", p.Name, p.Role, p.Specialty)
	}
	b.WriteString("\nRespond with ONLY a JSON object of this exact shape:\n")
	b.WriteString("{\"tasks\": [{\"task_id\": \"1\", \"agent\": \"name\", \"description\": \"...\", \"dependencies\": []}]}\n")
	b.WriteString("Dependencies list the task_ids that must finish first. ")
	b.WriteString("If the request needs no decomposition, respond with {\"tasks\": []}.\n")
	b.WriteString("\nRequest: ")
	b.WriteString(request)
	return b.String()
}

// AggregationPrompt builds the overseer prompt that synthesizes a summary
// from per-agent results. Results are included in agent-name order and
// truncated oldest-first when the prompt would exceed maxTokens (0 disables
// budgeting).
func AggregationPrompt(request string, results map[string]string, counter TokenCounter, maxTokens int) string {
	agents := make([]string, 0, len(results))
	for name := range results {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	header := fmt.Sprintf("Original request: %s\n\nTask results:\n", request)
	footer := "\nSynthesize these results into a single coherent answer to the original request."

	var body strings.Builder
	for _, name := range agents {
		entry := fmt.Sprintf("\n[%s]\n%s\n", name, results[name])
		if counter != nil && maxTokens > 0 {
			used := counter.Count(header + body.String() + footer)
			need := counter.Count(entry)
			if used+need > maxTokens {
				remaining := maxTokens - used
				if remaining <= 0 {
					break
				}
				entry = truncateToTokens(entry, counter, remaining)
			}
		}
		body.WriteString(entry)
	}
	return header + body.String() + footer
}

// truncateToTokens shortens text until it fits the budget, halving each
// pass. Coarse, but prompt budgeting is best-effort.
func truncateToTokens(text string, counter TokenCounter, budget int) string {
	runes := []rune(text)
	for counter.Count(string(runes)) > budget && len(runes) > 1 {
		runes = runes[:len(runes)/2]
	}
	text = string(runes)
	if counter.Count(text) > budget {
		return ""
	}
	return text + "\n[truncated]\n"
}
