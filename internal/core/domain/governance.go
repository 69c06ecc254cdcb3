package domain

// Proposal is a governance proposal from the voting hub. Read-through only:
// proposals never participate in snapshot generation or merge.
type Proposal struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	State   string   `json:"state"`
	Start   int64    `json:"start"`
	End     int64    `json:"end"`
	Link    string   `json:"link"`
	Choices []string `json:"choices,omitempty"`
	Body    string   `json:"body,omitempty"`
}
