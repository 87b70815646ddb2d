package engine

import (
	"context"
	"math"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

// ProgressSummary recomputes the campaign's completion counters from its
// task rows. Percent complete counts done tasks only; cancelled tasks still
// count toward the total. An empty campaign reports zero percent.
func (e Engine) ProgressSummary(ctx context.Context, campaignID string) (domain.Progress, error) {
	if _, err := e.Repo.GetCampaign(ctx, campaignID); err != nil {
		return domain.Progress{}, e.wrapRepoErr("campaign", campaignID, err)
	}
	counts, err := e.Repo.CountTasksByStatus(ctx, campaignID)
	if err != nil {
		return domain.Progress{}, storageErr("count tasks", err)
	}
	p := domain.Progress{
		CampaignID: campaignID,
		Pending:    counts[domain.TaskPending],
		InProgress: counts[domain.TaskInProgress],
		Blocked:    counts[domain.TaskBlocked],
		Done:       counts[domain.TaskDone],
		Cancelled:  counts[domain.TaskCancelled],
	}
	p.Total = p.Pending + p.InProgress + p.Blocked + p.Done + p.Cancelled
	if p.Total > 0 {
		p.PercentComplete = int(math.Round(100 * float64(p.Done) / float64(p.Total)))
	}
	return p, nil
}
