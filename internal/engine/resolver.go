package engine

import (
	"context"
	"sort"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
)

// IsActionable reports whether a task can be started right now: it is pending
// and every dependency is done. Cancelled dependencies do not unblock their
// dependents.
func IsActionable(task domain.Task, byID map[string]domain.Task) bool {
	if task.Status != domain.TaskPending {
		return false
	}
	for _, dep := range task.DependsOn {
		d, ok := byID[dep]
		if !ok || d.Status != domain.TaskDone {
			return false
		}
	}
	return true
}

func actionableOrder(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := domain.PriorityRank(tasks[i].Priority), domain.PriorityRank(tasks[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if tasks[i].CreatedAt != tasks[j].CreatedAt {
			return tasks[i].CreatedAt < tasks[j].CreatedAt
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// AllActionableTasks returns every actionable task in the campaign, ordered
// by priority, then creation time, then id. The ordering is deterministic so
// repeated calls without writes in between agree.
func (e Engine) AllActionableTasks(ctx context.Context, campaignID string) ([]domain.Task, error) {
	if _, err := e.Repo.GetCampaign(ctx, campaignID); err != nil {
		return nil, e.wrapRepoErr("campaign", campaignID, err)
	}
	tasks, err := e.Repo.ListCampaignTasks(ctx, campaignID)
	if err != nil {
		return nil, storageErr("list campaign tasks", err)
	}
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	var actionable []domain.Task
	for _, t := range tasks {
		if IsActionable(t, byID) {
			actionable = append(actionable, t)
		}
	}
	actionableOrder(actionable)
	return actionable, nil
}

// NextActionableTask returns the single highest-ranked actionable task, or
// nil when nothing can be started.
func (e Engine) NextActionableTask(ctx context.Context, campaignID string) (*domain.Task, error) {
	actionable, err := e.AllActionableTasks(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(actionable) == 0 {
		return nil, nil
	}
	return &actionable[0], nil
}

// detectCycle runs a three-color depth-first search over the dependency
// graph and returns a readable cycle path ("A -> B -> A") when one exists.
// deps maps task id to its dependency ids.
func detectCycle(deps map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))
	parent := map[string]string{}

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known {
				continue
			}
			switch color[dep] {
			case white:
				parent[dep] = id
				if visit(dep) {
					return true
				}
			case gray:
				// Walk parents back from id to dep to reconstruct the loop.
				path := []string{dep}
				for cur := id; ; cur = parent[cur] {
					path = append(path, cur)
					if cur == dep {
						break
					}
				}
				// Reverse so the path reads in dependency order.
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = path
				return true
			}
		}
		color[id] = black
		return false
	}
	for _, id := range ids {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// validateDependencyEdges checks candidate dependency edges for a task
// against the campaign's current graph: every referenced task must exist in
// the same campaign, self-dependencies are rejected, and the graph with the
// new edges must stay acyclic. tasks is the campaign snapshot with current
// edges loaded.
func validateDependencyEdges(taskID, campaignID string, newDeps []string, tasks []domain.Task) error {
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	seen := map[string]bool{}
	for _, dep := range newDeps {
		if dep == taskID {
			return validationErr("task cannot depend on itself", map[string]any{"task_id": taskID})
		}
		if seen[dep] {
			return validationErr("duplicate dependency "+dep, map[string]any{"task_id": taskID, "dependency": dep})
		}
		seen[dep] = true
		other, ok := byID[dep]
		if !ok {
			return notFoundErr("task", dep)
		}
		if other.CampaignID != campaignID {
			return validationErr("dependency "+dep+" belongs to a different campaign", map[string]any{"task_id": taskID, "dependency": dep})
		}
	}

	deps := make(map[string][]string, len(tasks)+1)
	for _, t := range tasks {
		deps[t.ID] = t.DependsOn
	}
	deps[taskID] = append(append([]string{}, deps[taskID]...), newDeps...)
	if cycle := detectCycle(deps); cycle != nil {
		return cycleErr(cycle)
	}
	return nil
}

// topoOrder returns ids in dependency order using Kahn's algorithm: every
// task comes after all of its dependencies. Ties break by insertion order of
// ids. Returns false when the graph has a cycle.
func topoOrder(ids []string, deps map[string][]string) ([]string, bool) {
	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		indegree[id] = len(deps[id])
		for _, dep := range deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}
	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order, len(order) == len(ids)
}
