// Package extraction implements the two-stage LLM extraction pipeline:
// fact extraction from raw conversation text, followed by a per-fact
// add/update/delete/noop decision against existing memories.
package extraction

import "time"

const (
	DefaultMaxFacts         = 30
	DefaultMaxFactChars     = 500
	MinFactChars            = 40
	DefaultSimilarTextChars = 280
	MinSimilarTextChars     = 40
	DefaultSimilarPerFact   = 5
	DefaultQueueCapacity    = 50
	DefaultWorkerCount      = 2
	NoveltyThreshold        = 0.88
)

// Category is a fact's classification; unknown values fall back to
// CategoryDetail.
type Category string

const (
	CategoryDecision Category = "decision"
	CategoryLearning Category = "learning"
	CategoryDetail   Category = "detail"
)

// NormalizeCategory maps arbitrary provider output to a valid Category.
func NormalizeCategory(s string) Category {
	switch Category(s) {
	case CategoryDecision, CategoryLearning, CategoryDetail:
		return Category(s)
	default:
		return CategoryDetail
	}
}

// Fact is one atomic statement pulled out of a conversation.
type Fact struct {
	Category Category
	Text     string
}

// ActionKind is an AUDN decision kind.
type ActionKind string

const (
	ActionAdd    ActionKind = "ADD"
	ActionUpdate ActionKind = "UPDATE"
	ActionDelete ActionKind = "DELETE"
	ActionNoop   ActionKind = "NOOP"
)

// Decision is one parsed AUDN instruction, keyed back to a Fact by index.
type Decision struct {
	Action     ActionKind
	FactIndex  int
	OldID      *int64
	NewText    string
	ExistingID *int64
}

// AppliedAction records what actually happened for one fact, for the
// job result's audit trail.
type AppliedAction struct {
	Action   string
	Text     string
	ID       *int64
	OldID    *int64
	NewID    *int64
	Existing *int64
	Error    string
}

// TokenUsage tracks a single provider call's token counts.
type TokenUsage struct {
	Input  int
	Output int
}

// Result is the outcome of one extraction job.
type Result struct {
	Actions        []AppliedAction
	ExtractedCount int
	StoredCount    int
	UpdatedCount   int
	DeletedCount   int
	ExtractTokens  TokenUsage
	AUDNTokens     TokenUsage

	Error        string
	ErrorStage   string
	ErrorMessage string

	FallbackTriggered bool
}

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one extraction request's lifecycle record.
type Job struct {
	ID            string
	Status        Status
	Source        string
	Context       string
	MessageLength int
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Result        *Result
	Error         string
}

// Request is the input to a single extraction job.
type Request struct {
	Messages string
	Source   string
	Context  string // "stop" | "pre_compact" | "session_end"
}
