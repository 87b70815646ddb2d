package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/mcrescenzo/task-crusader-mcp/internal/domain"
	"github.com/mcrescenzo/task-crusader-mcp/internal/engine"
	"github.com/mcrescenzo/task-crusader-mcp/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid task status transition pending -> done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every failure is reported in.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the campaign API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Task Crusader API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerCampaigns(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerAttachments(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError translates engine failures into the HTTP error envelope. The
// engine's error code is carried through verbatim so clients can switch on
// it regardless of transport.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if se, ok := err.(huma.StatusError); ok {
		return se
	}
	if ee, ok := engine.AsEngineError(err); ok {
		status := http.StatusInternalServerError
		switch ee.Code {
		case engine.CodeNotFound:
			status = http.StatusNotFound
		case engine.CodeValidation:
			status = http.StatusBadRequest
		case engine.CodeInvalidTransition:
			status = http.StatusConflict
		case engine.CodeCycleDetected, engine.CodeAcceptanceCriteria:
			status = http.StatusUnprocessableEntity
		}
		msg := ee.Message
		if ee.Code == engine.CodeStorageFault {
			msg = "internal error"
		}
		return newAPIError(status, string(ee.Code), msg, ee.Details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		} `json:"body"`
	}, error) {
		out := &struct {
			Body struct {
				Status string `json:"status"`
			} `json:"body"`
		}{}
		out.Body.Status = "ok"
		return out, nil
	})
}

func registerCampaigns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-campaign",
		Method:        http.MethodPost,
		Path:          "/campaigns",
		Summary:       "Create campaign",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateCampaignRequest `json:"body"`
	}) (*struct {
		Body CampaignResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCampaign(ctx, engine.CampaignCreateOptions{
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			Priority:    stringOrEmpty(input.Body.Priority),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CampaignResponse `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaigns",
		Method:      http.MethodGet,
		Path:        "/campaigns",
		Summary:     "List campaigns",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,completed,archived"`
	}) (*struct {
		Body campaignList `json:"body"`
	}, error) {
		cs, err := e.ListCampaigns(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body campaignList `json:"body"`
		}{Body: campaignList{Items: emptyNotNilCampaigns(cs)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-campaign",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}",
		Summary:     "Get campaign",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body CampaignResponse `json:"body"`
	}, error) {
		c, err := e.GetCampaign(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CampaignResponse `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-campaign",
		Method:      http.MethodPatch,
		Path:        "/campaigns/{id}",
		Summary:     "Update campaign",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateCampaignRequest `json:"body"`
	}) (*struct {
		Body CampaignResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCampaign(ctx, engine.CampaignUpdateOptions{
			ID:          input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Status:      input.Body.Status,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CampaignResponse `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-campaign",
		Method:        http.MethodDelete,
		Path:          "/campaigns/{id}",
		Summary:       "Delete campaign",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCampaign(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "campaign-progress",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}/progress",
		Summary:     "Campaign progress summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProgressResponse `json:"body"`
	}, error) {
		p, err := e.ProgressSummary(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProgressResponse `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "campaign-next-task",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}/tasks/next",
		Summary:     "Next actionable task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body nextTaskBody `json:"body"`
	}, error) {
		t, err := e.NextActionableTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body nextTaskBody `json:"body"`
		}{Body: nextTaskBody{Task: t}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "campaign-actionable-tasks",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}/tasks/actionable",
		Summary:     "All actionable tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		ts, err := e.AllActionableTasks(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Limit > 0 && len(ts) > input.Limit {
			ts = ts[:input.Limit]
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: emptyNotNilTasks(ts)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-campaign-with-tasks",
		Method:        http.MethodPost,
		Path:          "/campaigns/bulk",
		Summary:       "Create campaign with task graph",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body BulkCreateRequest `json:"body"`
	}) (*struct {
		Body BulkCreateResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CampaignWithTasksOptions{
			Name:        input.Body.Name,
			Description: stringOrEmpty(input.Body.Description),
			Priority:    stringOrEmpty(input.Body.Priority),
			ActorID:     actorID,
		}
		for _, bt := range input.Body.Tasks {
			opts.Tasks = append(opts.Tasks, engine.BulkTask{
				TempID:             bt.TempID,
				Title:              bt.Title,
				Description:        stringOrEmpty(bt.Description),
				Priority:           stringOrEmpty(bt.Priority),
				DependsOn:          bt.DependsOn,
				AcceptanceCriteria: bt.AcceptanceCriteria,
			})
		}
		res, err := e.CreateCampaignWithTasks(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkCreateResponse `json:"body"`
		}{Body: BulkCreateResponse{
			Campaign:    res.Campaign,
			Tasks:       emptyNotNilTasks(res.Tasks),
			IDsByTempID: res.IDsByTempID,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-campaign-research",
		Method:        http.MethodPost,
		Path:          "/campaigns/{id}/research",
		Summary:       "Attach research note to campaign",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AttachmentRequest `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
			Kind:       domain.KindResearchNote,
			CampaignID: input.ID,
			Content:    input.Body.Content,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaign-research",
		Method:      http.MethodGet,
		Path:        "/campaigns/{id}/research",
		Summary:     "List campaign research notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body attachmentList `json:"body"`
	}, error) {
		ms, err := e.ListAttachments(ctx, "", input.ID, domain.KindResearchNote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body attachmentList `json:"body"`
		}{Body: attachmentList{Items: emptyNotNilAttachments(ms)}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/campaigns/{campaign_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		CampaignID string            `path:"campaign_id"`
		Body       CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			CampaignID:  input.CampaignID,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Priority:    stringOrEmpty(input.Body.Priority),
			DependsOn:   input.Body.DependsOn,
			ActorID:     actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/campaigns/{campaign_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CampaignID string `path:"campaign_id"`
		Status     string `query:"status" enum:"pending,in-progress,blocked,done,cancelled"`
		Priority   string `query:"priority" enum:"critical,high,medium,low"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		if _, err := e.GetCampaign(ctx, input.CampaignID); err != nil {
			return nil, handleError(err)
		}
		ts, err := e.ListTasks(ctx, repo.TaskFilters{
			CampaignID: input.CampaignID,
			Status:     input.Status,
			Priority:   input.Priority,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: emptyNotNilTasks(ts)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task with attachments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskDetailsBody `json:"body"`
	}, error) {
		d, err := e.TaskDetails(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskDetailsBody `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:              input.ID,
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Priority:        input.Body.Priority,
			Status:          input.Body.Status,
			AddDependsOn:    input.Body.AddDependsOn,
			RemoveDependsOn: input.Body.RemoveDependsOn,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/complete",
		Summary:     "Complete task",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CompleteTask(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: t}, nil
	})
}

func registerAttachments(api huma.API, e engine.Engine) {
	// Task-owned attachment kinds share one add/list route pair keyed by a
	// short kind segment.
	kindByPath := map[string]string{
		"criteria": domain.KindAcceptanceCriterion,
		"steps":    domain.KindTestingStep,
		"research": domain.KindResearchNote,
		"notes":    domain.KindImplementationNote,
	}

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-attachment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/{kind}",
		Summary:       "Attach entry to task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Kind string            `path:"kind" enum:"criteria,steps,research,notes"`
		Body AttachmentRequest `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		kind, ok := kindByPath[input.Kind]
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown attachment kind "+input.Kind, nil)
		}
		m, err := e.AddAttachment(ctx, engine.AttachmentAddOptions{
			Kind:    kind,
			TaskID:  input.ID,
			Content: input.Body.Content,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-attachments",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/{kind}",
		Summary:     "List task attachments",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Kind string `path:"kind" enum:"criteria,steps,research,notes"`
	}) (*struct {
		Body attachmentList `json:"body"`
	}, error) {
		kind, ok := kindByPath[input.Kind]
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown attachment kind "+input.Kind, nil)
		}
		ms, err := e.ListAttachments(ctx, input.ID, "", kind)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body attachmentList `json:"body"`
		}{Body: attachmentList{Items: emptyNotNilAttachments(ms)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-attachment",
		Method:      http.MethodPatch,
		Path:        "/attachments/{id}",
		Summary:     "Update attachment content",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AttachmentRequest `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.UpdateAttachment(ctx, input.ID, input.Body.Content, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-attachment",
		Method:        http.MethodDelete,
		Path:          "/attachments/{id}",
		Summary:       "Delete attachment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAttachment(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-criterion",
		Method:      http.MethodPost,
		Path:        "/criteria/{id}/{state}",
		Summary:     "Mark acceptance criterion met or unmet",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		State string `path:"state" enum:"met,unmet"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			m   domain.MemoryEntry
			err error
		)
		switch input.State {
		case "met":
			m, err = e.MarkCriterionMet(ctx, input.ID, actorID)
		case "unmet":
			m, err = e.MarkCriterionUnmet(ctx, input.ID, actorID)
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "state must be met or unmet", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-step-result",
		Method:      http.MethodPost,
		Path:        "/steps/{id}/result",
		Summary:     "Record testing step result",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body StepResultRequest `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetTestingStepResult(ctx, input.ID, input.Body.Result, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-attachments",
		Method:      http.MethodPost,
		Path:        "/attachments/reorder",
		Summary:     "Reorder attachments for one owner and kind",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReorderRequest `json:"body"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		err := e.ReorderAttachments(ctx, stringOrEmpty(input.Body.TaskID), stringOrEmpty(input.Body.CampaignID), input.Body.Kind, input.Body.IDs, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		CampaignID string `query:"campaign_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body eventList `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		evts, err := e.Repo.LatestEvents(ctx, limit, input.CampaignID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		if evts == nil {
			evts = []EventResponse{}
		}
		return &struct {
			Body eventList `json:"body"`
		}{Body: eventList{Items: evts}}, nil
	})
}
