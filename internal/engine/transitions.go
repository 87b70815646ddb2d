package engine

import "github.com/mcrescenzo/task-crusader-mcp/internal/domain"

// taskTransitions is the allowed task status graph. done is only reachable
// from in-progress; done and cancelled are terminal.
var taskTransitions = map[string][]string{
	domain.TaskPending:    {domain.TaskInProgress, domain.TaskCancelled},
	domain.TaskInProgress: {domain.TaskBlocked, domain.TaskDone, domain.TaskCancelled},
	domain.TaskBlocked:    {domain.TaskInProgress, domain.TaskCancelled},
	domain.TaskDone:       {},
	domain.TaskCancelled:  {},
}

// campaignTransitions is the allowed campaign status graph. archived is
// terminal.
var campaignTransitions = map[string][]string{
	domain.CampaignActive:    {domain.CampaignCompleted, domain.CampaignArchived},
	domain.CampaignCompleted: {domain.CampaignArchived},
	domain.CampaignArchived:  {},
}

func ensureTaskTransition(from, to string) error {
	if from == to {
		return nil
	}
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return transitionErr("task", from, to)
}

func ensureCampaignTransition(from, to string) error {
	if from == to {
		return nil
	}
	for _, allowed := range campaignTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return transitionErr("campaign", from, to)
}
