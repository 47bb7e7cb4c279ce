package workitem

import "time"

// Outcome is the result class of a step attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// RunRecord is one immutable ledger entry. Exactly one is appended per step
// invocation; records are never edited or deleted.
type RunRecord struct {
	ID         string    `json:"id"`
	WorkItemID string    `json:"work_item_id"`
	Step       string    `json:"step"`
	Outcome    Outcome   `json:"outcome"`
	Model      string    `json:"model,omitempty"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	CostUSD    float64   `json:"cost_usd"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	Error      string    `json:"error,omitempty"`

	// BlockIndex is set for write-block attempts.
	BlockIndex *int `json:"block_index,omitempty"`
}

// RunFilter selects ledger records. Zero fields do not filter.
type RunFilter struct {
	WorkItemID string
	OwnerID    string
	From       time.Time
	To         time.Time
}

// Match reports whether r satisfies the item and time bounds of f. The owner
// bound needs item metadata and is applied by the store.
func (f RunFilter) Match(r RunRecord) bool {
	if f.WorkItemID != "" && r.WorkItemID != f.WorkItemID {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	return true
}
