// Package hints produces short next-step suggestions appended to tool
// responses. They are advisory text only and never change engine behavior.
package hints

import (
	"fmt"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

// CampaignCreated suggests what to do with a fresh campaign.
func CampaignCreated(c domain.Campaign) []string {
	return []string{
		fmt.Sprintf("Campaign %q is active. Add tasks with task_create, or use campaign_get_next_actionable_task once tasks exist.", c.Name),
	}
}

// TaskCreated points at dependency wiring and acceptance criteria.
func TaskCreated(t domain.Task) []string {
	hs := []string{
		"Add acceptance criteria with task_acceptance_criteria_add; task_complete is blocked until all of them are met.",
	}
	if len(t.DependsOn) == 0 {
		hs = append(hs, "This task has no dependencies, so it is actionable as soon as its status is pending.")
	}
	return hs
}

// TaskCompleted reads the campaign progress and suggests the follow-up.
func TaskCompleted(p domain.Progress) []string {
	if p.Total > 0 && p.Done+p.Cancelled == p.Total {
		return []string{"All tasks are finished. Mark the campaign completed with campaign_update."}
	}
	return []string{
		fmt.Sprintf("Campaign is %d%% complete. Use campaign_get_next_actionable_task to pick the next task.", p.PercentComplete),
	}
}

// NoActionable explains why nothing can be started and what to check.
func NoActionable(p domain.Progress) []string {
	switch {
	case p.Total == 0:
		return []string{"The campaign has no tasks yet. Create some with task_create or campaign_create_with_tasks."}
	case p.Blocked > 0:
		return []string{fmt.Sprintf("%d task(s) are blocked. Unblock them with task_update status=in-progress, or cancel them.", p.Blocked)}
	case p.InProgress > 0:
		return []string{fmt.Sprintf("%d task(s) are already in progress. Finish them to unlock their dependents.", p.InProgress)}
	case p.Pending > 0:
		return []string{"Pending tasks are waiting on unfinished dependencies. Complete the upstream tasks first."}
	default:
		return []string{"Every task is done or cancelled. Mark the campaign completed with campaign_update."}
	}
}
