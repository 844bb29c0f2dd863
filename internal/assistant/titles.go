package assistant

import "fmt"

// titleCandidates lists, per entity type and in priority order, the data
// fields tried when labelling an audit entry. The first non-empty value wins.
var titleCandidates = map[string][]string{
	"client":         {"name"},
	"contact":        {"full_name", "last_name", "first_name", "email"},
	"deal":           {"title"},
	"mission":        {"title"},
	"quote":          {"numero", "title"},
	"invoice":        {"numero", "title"},
	"proposal":       {"title"},
	"brief":          {"title"},
	"delivery_note":  {"title"},
	"review_request": {"title", "recipient"},
}

const untitled = "(sans titre)"

// entityTitle derives the audit label from the handler's result data.
func entityTitle(entityType string, data map[string]any) string {
	for _, field := range titleCandidates[entityType] {
		if v, ok := data[field]; ok {
			if s := fmt.Sprint(v); s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return untitled
}

// entityID extracts the created or updated entity's id from the result data.
func entityID(data map[string]any) string {
	if v, ok := data["id"]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
