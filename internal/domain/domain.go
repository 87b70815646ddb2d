package domain

// Priority levels, highest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in-progress"
	TaskBlocked    = "blocked"
	TaskDone       = "done"
	TaskCancelled  = "cancelled"
)

// Campaign statuses.
const (
	CampaignActive    = "active"
	CampaignCompleted = "completed"
	CampaignArchived  = "archived"
)

// Memory attachment kinds. A closed set: every attachment is one of these,
// stored in a single table so ordering and CRUD stay kind-agnostic.
const (
	KindAcceptanceCriterion = "acceptance_criterion"
	KindTestingStep         = "testing_step"
	KindResearchNote        = "research_note"
	KindImplementationNote  = "implementation_note"
)

// Testing step results.
const (
	StepUnset   = "unset"
	StepPassed  = "passed"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

type Campaign struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority" enum:"critical,high,medium,low"`
	Status      string  `json:"status" enum:"active,completed,archived"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type Task struct {
	ID          string   `json:"id"`
	CampaignID  string   `json:"campaign_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority" enum:"critical,high,medium,low"`
	Status      string   `json:"status" enum:"pending,in-progress,blocked,done,cancelled"`
	DependsOn   []string `json:"depends_on,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
	CompletedAt *string  `json:"completed_at,omitempty" format:"date-time"`
}

// MemoryEntry is one attachment record. TaskID or CampaignID is set, never
// both: criteria, steps and implementation notes attach to tasks; research
// notes attach to either.
type MemoryEntry struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind" enum:"acceptance_criterion,testing_step,research_note,implementation_note"`
	TaskID     *string `json:"task_id,omitempty"`
	CampaignID *string `json:"campaign_id,omitempty"`
	Content    string  `json:"content"`
	Met        *bool   `json:"met,omitempty"`
	Result     *string `json:"result,omitempty" enum:"passed,failed,skipped,unset"`
	OrderIndex int     `json:"order_index"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

// TaskDetails is a task plus all of its memory attachments, grouped by kind.
type TaskDetails struct {
	Task                Task          `json:"task"`
	AcceptanceCriteria  []MemoryEntry `json:"acceptance_criteria"`
	TestingSteps        []MemoryEntry `json:"testing_steps"`
	ResearchNotes       []MemoryEntry `json:"research_notes"`
	ImplementationNotes []MemoryEntry `json:"implementation_notes"`
}

// Progress is the derived campaign completion summary. Never persisted;
// recomputed from task rows on each call.
type Progress struct {
	CampaignID      string `json:"campaign_id"`
	Total           int    `json:"total"`
	Pending         int    `json:"pending"`
	InProgress      int    `json:"in_progress"`
	Blocked         int    `json:"blocked"`
	Done            int    `json:"done"`
	Cancelled       int    `json:"cancelled"`
	PercentComplete int    `json:"percent_complete"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	CampaignID string `json:"campaign_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// PriorityRank orders priorities for actionable-task selection; lower ranks
// sort first. Unknown priorities sort last.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p string) bool {
	return PriorityRank(p) < 4
}

// TerminalTaskStatus reports whether no further transitions are allowed.
func TerminalTaskStatus(status string) bool {
	return status == TaskDone || status == TaskCancelled
}
