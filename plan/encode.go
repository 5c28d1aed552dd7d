package plan

import (
	"encoding/json"
	"fmt"

	"github.com/BaSui01/crewflow/types"
)

// encodedTask mirrors the JSON shape the delegation prompt requests.
type encodedTask struct {
	TaskID       string   `json:"task_id"`
	Agent        string   `json:"agent"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
}

// Encode serializes tasks to the canonical plan JSON. Encode and Parse
// round-trip: parsing the output yields an equivalent task list.
func Encode(tasks []*types.Task) (string, error) {
	out := struct {
		Tasks []encodedTask `json:"tasks"`
	}{Tasks: make([]encodedTask, 0, len(tasks))}

	for _, t := range tasks {
		deps := t.Dependencies
		if deps == nil {
			deps = []string{}
		}
		out.Tasks = append(out.Tasks, encodedTask{
			TaskID:       t.ID,
			Agent:        t.Agent,
			Description:  t.Description,
			Dependencies: deps,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	return string(data), nil
}
