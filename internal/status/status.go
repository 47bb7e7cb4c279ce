// Package status defines work item status values and the pure state-machine
// functions over them.
//
// A work item moves forward through the sequence
//
//	draft → analyzing → planning → writing → media → seo_check → reviewing → publishing → published
//
// and may leave published for the re-entry state refresh_needed. None of the
// functions in this package perform I/O; they are safe to call from anywhere.
//
// Key functions:
//   - [RollbackTarget] - the state exactly one step back
//   - [Label] - human display label
//   - [Progress] - completion percentage 0..100
package status

// Status represents the pipeline status of a work item.
type Status string

// Pipeline status values.
const (
	// StatusDraft is the initial state of every new work item.
	StatusDraft Status = "draft"

	// StatusAnalyzing is set once the source analysis has been produced.
	StatusAnalyzing Status = "analyzing"

	// StatusPlanning is set once the block plan exists.
	StatusPlanning Status = "planning"

	// StatusWriting is set once at least one block has been written.
	StatusWriting Status = "writing"

	// StatusMedia is set once image blocks carry alt text and filenames.
	StatusMedia Status = "media"

	// StatusSEOCheck is set when the SEO check found rule violations.
	StatusSEOCheck Status = "seo_check"

	// StatusReviewing is the human review gate reached after a clean SEO check.
	StatusReviewing Status = "reviewing"

	// StatusPublishing is only reachable by rolling back from published.
	StatusPublishing Status = "publishing"

	// StatusPublished indicates the content is live on the publishing target.
	StatusPublished Status = "published"

	// StatusRefreshNeeded marks published content as stale.
	StatusRefreshNeeded Status = "refresh_needed"
)

// forward is the ordered forward sequence. refresh_needed is deliberately
// absent: it is a re-entry state, not a forward stage.
var forward = []Status{
	StatusDraft,
	StatusAnalyzing,
	StatusPlanning,
	StatusWriting,
	StatusMedia,
	StatusSEOCheck,
	StatusReviewing,
	StatusPublishing,
	StatusPublished,
}

var labels = map[Status]string{
	StatusDraft:         "Brouillon",
	StatusAnalyzing:     "Analyse",
	StatusPlanning:      "Plan",
	StatusWriting:       "Redaction",
	StatusMedia:         "Media",
	StatusSEOCheck:      "Verification SEO",
	StatusReviewing:     "Relecture",
	StatusPublishing:    "Publication",
	StatusPublished:     "Publie",
	StatusRefreshNeeded: "A rafraichir",
}

// IsValid returns true if the status is one of the known pipeline states.
func (s Status) IsValid() bool {
	if s == StatusRefreshNeeded {
		return true
	}
	return indexOf(s) >= 0
}

// String returns the raw status token.
func (s Status) String() string {
	return string(s)
}

// Forward returns a copy of the forward status sequence, draft first.
func Forward() []Status {
	out := make([]Status, len(forward))
	copy(out, forward)
	return out
}

// Index returns the position of s in the forward sequence, or -1 when s is
// not a forward state (refresh_needed or unknown).
func Index(s Status) int {
	return indexOf(s)
}

func indexOf(s Status) int {
	for i, f := range forward {
		if f == s {
			return i
		}
	}
	return -1
}

// RollbackTarget returns the status immediately preceding s.
//
// Rollback is always exactly one state back. The second return value is
// false when s has no predecessor (draft) or is not a known status; this is
// not an error condition. refresh_needed rolls back to published, the only
// state it can be entered from.
func RollbackTarget(s Status) (Status, bool) {
	if s == StatusRefreshNeeded {
		return StatusPublished, true
	}
	i := indexOf(s)
	if i <= 0 {
		return "", false
	}
	return forward[i-1], true
}

// Label returns the display label for s. Unknown statuses fail closed to
// the raw token.
func Label(s Status) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Progress returns the completion percentage for s.
//
// The value is the forward index scaled to 100. refresh_needed reports 100
// because it describes completed-then-stale content. Unknown statuses
// report 0.
func Progress(s Status) int {
	if s == StatusRefreshNeeded {
		return 100
	}
	i := indexOf(s)
	if i < 0 {
		return 0
	}
	return i * 100 / (len(forward) - 1)
}

// Before reports whether a precedes b in the forward sequence. Statuses
// outside the forward sequence are never before anything.
func Before(a, b Status) bool {
	ia, ib := indexOf(a), indexOf(b)
	if ia < 0 || ib < 0 {
		return false
	}
	return ia < ib
}
