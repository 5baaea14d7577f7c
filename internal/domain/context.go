package domain

// ContextBundle is the merged output of the context aggregator. Every
// field may be empty; a lookup that failed contributes nothing rather
// than blocking the draft.
type ContextBundle struct {
	Memories      []string   `json:"memories,omitempty"`
	BusinessFacts []string   `json:"business_facts,omitempty"`
	CalendarLines []string   `json:"calendar_lines,omitempty"`
	History       []*Message `json:"history,omitempty"`
	Rules         []string   `json:"rules,omitempty"`
}
