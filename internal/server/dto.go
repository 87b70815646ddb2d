package server

import (
	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

// Responses reuse the domain shapes; their json tags are the wire contract.
type (
	CampaignResponse   = domain.Campaign
	TaskResponse       = domain.Task
	TaskDetailsBody    = domain.TaskDetails
	AttachmentResponse = domain.MemoryEntry
	ProgressResponse   = domain.Progress
	EventResponse      = domain.Event
)

type CreateCampaignRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"critical,high,medium,low"`
}

type UpdateCampaignRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"critical,high,medium,low"`
	Status      *string `json:"status,omitempty" enum:"active,completed,archived"`
}

type CreateTaskRequest struct {
	ID          *string  `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Priority    *string  `json:"priority,omitempty" enum:"critical,high,medium,low"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

type UpdateTaskRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Priority        *string  `json:"priority,omitempty" enum:"critical,high,medium,low"`
	Status          *string  `json:"status,omitempty" enum:"pending,in-progress,blocked,done,cancelled"`
	AddDependsOn    []string `json:"add_depends_on,omitempty"`
	RemoveDependsOn []string `json:"remove_depends_on,omitempty"`
}

type AttachmentRequest struct {
	Content string `json:"content"`
}

type StepResultRequest struct {
	Result string `json:"result" enum:"passed,failed,skipped,unset"`
}

type ReorderRequest struct {
	TaskID     *string  `json:"task_id,omitempty"`
	CampaignID *string  `json:"campaign_id,omitempty"`
	Kind       string   `json:"kind" enum:"acceptance_criterion,testing_step,research_note,implementation_note"`
	IDs        []string `json:"ids"`
}

type BulkTaskRequest struct {
	TempID             string   `json:"temp_id"`
	Title              string   `json:"title"`
	Description        *string  `json:"description,omitempty"`
	Priority           *string  `json:"priority,omitempty" enum:"critical,high,medium,low"`
	DependsOn          []string `json:"depends_on,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

type BulkCreateRequest struct {
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Priority    *string           `json:"priority,omitempty" enum:"critical,high,medium,low"`
	Tasks       []BulkTaskRequest `json:"tasks"`
}

type BulkCreateResponse struct {
	Campaign    CampaignResponse  `json:"campaign"`
	Tasks       []TaskResponse    `json:"tasks"`
	IDsByTempID map[string]string `json:"ids_by_temp_id"`
}

type campaignList struct {
	Items []CampaignResponse `json:"items"`
}

type taskList struct {
	Items []TaskResponse `json:"items"`
}

type attachmentList struct {
	Items []AttachmentResponse `json:"items"`
}

type eventList struct {
	Items []EventResponse `json:"items"`
}

// nextTaskBody wraps an optional task; task is null when nothing is
// actionable.
type nextTaskBody struct {
	Task *TaskResponse `json:"task"`
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func emptyNotNilCampaigns(cs []CampaignResponse) []CampaignResponse {
	if cs == nil {
		return []CampaignResponse{}
	}
	return cs
}

func emptyNotNilTasks(ts []TaskResponse) []TaskResponse {
	if ts == nil {
		return []TaskResponse{}
	}
	return ts
}

func emptyNotNilAttachments(ms []AttachmentResponse) []AttachmentResponse {
	if ms == nil {
		return []AttachmentResponse{}
	}
	return ms
}
