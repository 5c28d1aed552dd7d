package collaboration

import (
	"strings"

	"github.com/BaSui01/crewflow/agent"
)

// specialtyKeywords routes a direct request to a specialty when the
// overseer decides no decomposition is needed. First match wins; the table
// is checked in declaration order.
var specialtyKeywords = []struct {
	specialty string
	words     []string
}{
	{"testing", []string{"test", "qa", "coverage", "regression"}},
	{"frontend", []string{"ui", "page", "css", "component", "frontend", "react"}},
	{"backend", []string{"api", "endpoint", "server", "backend", "service"}},
	{"database", []string{"database", "sql", "query", "schema", "migration"}},
	{"devops", []string{"deploy", "docker", "kubernetes", "pipeline", "ci"}},
	{"security", []string{"security", "vulnerability", "auth", "encrypt"}},
	{"docs", []string{"document", "readme", "changelog", "tutorial"}},
	{"research", []string{"research", "investigate", "compare", "evaluate"}},
}

// pickDirectAgent chooses the agent for the single-agent passthrough path.
// It scans the request for specialty keywords and picks the first roster
// member with that specialty; the overseer handles everything unmatched.
func pickDirectAgent(roster *agent.Roster, request string) string {
	words := requestWords(request)
	for _, entry := range specialtyKeywords {
		for _, w := range entry.words {
			if !matchesKeyword(words, w) {
				continue
			}
			for _, name := range roster.Names() {
				if name == roster.Overseer() {
					continue
				}
				if p, ok := roster.Lookup(name); ok && p.Specialty == entry.specialty {
					return name
				}
			}
		}
	}
	return roster.Overseer()
}

// requestWords lowercases the request and splits it on non-alphanumerics.
func requestWords(request string) []string {
	return strings.FieldsFunc(strings.ToLower(request), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// matchesKeyword reports whether any word matches the keyword. Keywords of
// three letters or more also match as a prefix ("test" covers "tests" and
// "testing"); shorter ones like "ui" and "qa" must match a whole word so
// they cannot fire inside unrelated words.
func matchesKeyword(words []string, keyword string) bool {
	for _, w := range words {
		if w == keyword {
			return true
		}
		if len(keyword) >= 3 && strings.HasPrefix(w, keyword) {
			return true
		}
	}
	return false
}
